package dedup

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/ttacon/libphonenumber"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// Component weights. Only components present on both vendors
// participate; the weights of the missing ones are redistributed.
const (
	nameWeight  = 0.5
	phoneWeight = 0.3
	emailWeight = 0.2
)

const defaultPhoneRegion = "US"

// Legal suffixes stripped before name comparison, so "Acme Plumbing
// LLC" and "Acme Plumbing, Inc." compare as the same name.
var legalSuffixes = []string{
	"llc", "llp", "inc", "incorporated", "corp", "corporation",
	"co", "company", "ltd", "limited",
}

// MatchScore is one vendor pair comparison.
type MatchScore struct {
	Score   float64
	Reasons []string
}

// compareVendors scores how likely two vendors are the same real-world
// business. Scores are in [0, 1]; identical records score 1.
func compareVendors(a, b *entities.Vendor) MatchScore {
	var weighted, total float64
	var reasons []string

	nameA, nameB := normalizeName(a.Name), normalizeName(b.Name)
	if nameA != "" && nameB != "" {
		score := nameSimilarity(nameA, nameB)
		weighted += nameWeight * score
		total += nameWeight
		if score >= 0.85 {
			reasons = append(reasons, "similar_name")
		}
	}

	phoneA, phoneB := normalizePhone(a.Phone), normalizePhone(b.Phone)
	if phoneA != "" && phoneB != "" {
		if phoneA == phoneB {
			weighted += phoneWeight
			reasons = append(reasons, "same_phone")
		}
		total += phoneWeight
	}

	emailA := strings.ToLower(strings.TrimSpace(a.Email))
	emailB := strings.ToLower(strings.TrimSpace(b.Email))
	if emailA != "" && emailB != "" {
		if emailA == emailB {
			weighted += emailWeight
			reasons = append(reasons, "same_email")
		}
		total += emailWeight
	}

	if total == 0 {
		return MatchScore{}
	}
	return MatchScore{Score: weighted / total, Reasons: reasons}
}

// normalizeName lowercases, strips punctuation and drops trailing
// legal suffixes.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, suffix := range legalSuffixes {
		if word == suffix {
			return true
		}
	}
	return false
}

// nameSimilarity converts edit distance into a [0, 1] similarity.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// normalizePhone canonicalizes a phone number to E.164. Numbers the
// parser rejects fall back to their digits, so "(303) 555-0101" and
// "303.555.0101" still compare equal.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	parsed, err := libphonenumber.Parse(phone, defaultPhoneRegion)
	if err == nil && libphonenumber.IsValidNumber(parsed) {
		return libphonenumber.Format(parsed, libphonenumber.E164)
	}
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}
