// Package reclassify rebuilds derived utility expenses from immutable
// bill lines. Classification is driven by the GL-account-to-utility
// mapping, so a mapping change is applied by deleting the derived rows
// in range and deriving them again.
package reclassify

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// Result summarizes one reprocessing pass. Updated and Skipped are
// always zero: derived rows are deleted and rebuilt, never edited in
// place.
type Result struct {
	BillsExamined int `json:"bills_examined"`
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"`
	Unmatched     int `json:"unmatched"`
	Errors        int `json:"errors"`
	Deleted       int `json:"deleted"`
}

// Engine derives UtilityExpense rows from BillDetail rows.
type Engine struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewEngine(db *gorm.DB, log *logrus.Logger) *Engine {
	return &Engine{db: db, log: log}
}

// ReprocessRange deletes every derived utility expense whose bill date
// falls in [from, to] and rebuilds them from the bill lines in the
// same range. Nil bounds leave that side open. Running it twice over
// unchanged inputs produces identical rows; bills whose GL account has
// no mapping are counted unmatched and produce nothing. A bill line
// whose expense cannot be written is counted in Errors and the pass
// continues with the remaining lines.
func (e *Engine) ReprocessRange(from, to *time.Time) (*Result, error) {
	mapping, err := e.utilityMapping()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	err = e.db.Transaction(func(tx *gorm.DB) error {
		deleted := boundedByBillDate(tx.Model(&entities.UtilityExpense{}), "expense_date", from, to).
			Delete(&entities.UtilityExpense{})
		if deleted.Error != nil {
			return fmt.Errorf("deleting derived expenses: %w", deleted.Error)
		}
		result.Deleted = int(deleted.RowsAffected)

		var bills []entities.BillDetail
		if err := boundedByBillDate(tx, "bill_date", from, to).
			Order("id").Find(&bills).Error; err != nil {
			return fmt.Errorf("loading bill lines: %w", err)
		}

		for i := range bills {
			bill := &bills[i]
			result.BillsExamined++
			utilityType, ok := mapping[bill.GLAccountNumber]
			if !ok {
				result.Unmatched++
				continue
			}
			expense := entities.UtilityExpense{
				BillDetailID:    bill.ID,
				PropertyID:      bill.PropertyID,
				UtilityType:     utilityType,
				GLAccountNumber: bill.GLAccountNumber,
				Amount:          bill.Amount,
				ExpenseDate:     bill.BillDate,
			}
			if err := tx.Create(&expense).Error; err != nil {
				result.Errors++
				e.log.WithFields(logrus.Fields{
					"bill":       bill.ID,
					"gl_account": bill.GLAccountNumber,
				}).WithError(err).Warn("failed to derive expense for bill line")
				continue
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"examined":  result.BillsExamined,
		"created":   result.Created,
		"unmatched": result.Unmatched,
		"errors":    result.Errors,
		"deleted":   result.Deleted,
	}).Info("utility expenses reprocessed")
	return result, nil
}

// ApplyMappingChange upserts one GL-account mapping and reprocesses
// everything so existing expenses reflect the new classification.
func (e *Engine) ApplyMappingChange(glAccount, utilityType, description string) (*Result, error) {
	if glAccount == "" || utilityType == "" {
		return nil, fmt.Errorf("gl account and utility type are required")
	}
	var account entities.UtilityAccount
	err := e.db.Where("gl_account_number = ?", glAccount).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = entities.UtilityAccount{
			GLAccountNumber: glAccount,
			UtilityType:     utilityType,
			Description:     description,
		}
		if err := e.db.Create(&account).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		account.UtilityType = utilityType
		if description != "" {
			account.Description = description
		}
		if err := e.db.Save(&account).Error; err != nil {
			return nil, err
		}
	}
	return e.ReprocessRange(nil, nil)
}

// utilityMapping loads the GL-account-to-utility-type table.
func (e *Engine) utilityMapping() (map[string]string, error) {
	var accounts []entities.UtilityAccount
	if err := e.db.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("loading utility accounts: %w", err)
	}
	mapping := make(map[string]string, len(accounts))
	for _, account := range accounts {
		mapping[account.GLAccountNumber] = account.UtilityType
	}
	return mapping, nil
}

func boundedByBillDate(tx *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		tx = tx.Where(column+" >= ?", *from)
	}
	if to != nil {
		tx = tx.Where(column+" <= ?", *to)
	}
	return tx
}
