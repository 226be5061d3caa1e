package news

import "strings"

const (
	TagConstruction       = "construction"
	TagMedicalMalpractice = "medical malpractice"
	TagProductLiability   = "product liability"
	TagWorkplace          = "workplace"
	TagCrash              = "crash"
	TagGeneral            = "general"
)

type categoryRule struct {
	tag   string
	terms []string
}

// categoryRules is checked in order. The first rule with a matching term wins.
var categoryRules = []categoryRule{
	{tag: TagConstruction, terms: []string{"construction", "building", "contractor"}},
	{tag: TagMedicalMalpractice, terms: []string{"medical", "malpractice", "doctor", "hospital"}},
	{tag: TagProductLiability, terms: []string{"product", "defective", "recall"}},
	{tag: TagWorkplace, terms: []string{"workplace", "worker", "job", "employee"}},
	{tag: TagCrash, terms: []string{"crash", "accident", "collision", "vehicle"}},
}

// Categorize tags text by case-insensitive substring match against categoryRules.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				return rule.tag
			}
		}
	}
	return TagGeneral
}
