package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// Default GL-account-to-utility mappings seeded on first start. They
// can be edited afterwards through the utility account endpoints.
var defaultUtilityAccounts = []entities.UtilityAccount{
	{GLAccountNumber: "6310", UtilityType: "electric", Description: "Electric service"},
	{GLAccountNumber: "6320", UtilityType: "gas", Description: "Gas service"},
	{GLAccountNumber: "6330", UtilityType: "water", Description: "Water and sewer"},
	{GLAccountNumber: "6340", UtilityType: "trash", Description: "Trash removal"},
}

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Property{},
		&entities.Unit{},
		&entities.Person{},
		&entities.Lease{},
		&entities.LedgerTransaction{},
		&entities.WorkOrder{},
		&entities.Vendor{},
		&entities.BillDetail{},
		&entities.UtilityExpense{},
		&entities.UtilityAccount{},
		&entities.SyncRun{},
		&entities.RawEvent{},
		&entities.SyncFailureAlert{},
		&entities.VendorDuplicateAnalysis{},
		&entities.Setting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.seedUtilityAccounts(log); err != nil {
		return nil, fmt.Errorf("failed to seed utility accounts: %w", err)
	}

	if log != nil {
		log.WithField("path", dbPath).Info("database initialized")
	}

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedUtilityAccounts(log *logrus.Logger) error {
	for _, account := range defaultUtilityAccounts {
		var existing entities.UtilityAccount
		result := d.DB.Where("gl_account_number = ?", account.GLAccountNumber).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := d.DB.Create(&account).Error; err != nil {
				return fmt.Errorf("failed to create utility account %s: %w", account.GLAccountNumber, err)
			}
			if log != nil {
				log.WithFields(logrus.Fields{
					"gl_account":   account.GLAccountNumber,
					"utility_type": account.UtilityType,
				}).Info("seeded utility account")
			}
		}
	}
	return nil
}
