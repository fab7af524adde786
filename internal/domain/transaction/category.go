package transaction

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCategory groups transactions without a personal finance category.
const UnknownCategory = "UNKNOWN"

// CategoryLabels maps Plaid personal finance category primaries to the
// labels shown on the dashboard.
var CategoryLabels = map[string]string{
	"INCOME":                    "Income",
	"TRANSFER_IN":               "Transfers In",
	"TRANSFER_OUT":              "Transfers Out",
	"LOAN_PAYMENTS":             "Loan Payments",
	"BANK_FEES":                 "Bank Fees",
	"ENTERTAINMENT":             "Entertainment",
	"FOOD_AND_DRINK":            "Food & Drink",
	"GENERAL_MERCHANDISE":       "General Merchandise",
	"HOME_IMPROVEMENT":          "Home Improvement",
	"MEDICAL":                   "Medical",
	"PERSONAL_CARE":             "Personal Care",
	"GENERAL_SERVICES":          "General Services",
	"GOVERNMENT_AND_NON_PROFIT": "Government & Non-Profit",
	"TRANSPORTATION":            "Transportation",
	"TRAVEL":                    "Travel",
	"RENT_AND_UTILITIES":        "Rent & Utilities",
	UnknownCategory:             "Uncategorized",
}

// CategoryLabel returns the display label for a category key, falling back
// to the key itself.
func CategoryLabel(key string) string {
	if label, ok := CategoryLabels[key]; ok {
		return label
	}
	return key
}

// CategoryTotal is the spending of one category within a time range.
type CategoryTotal struct {
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// SpendingByCategory sums outflows (non-negative amounts) per personal
// finance category for transactions dated after since. A zero since covers
// all transactions. Results are sorted by amount, largest first.
func SpendingByCategory(txs []*Transaction, since time.Time) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)

	for _, tx := range txs {
		if tx.Amount.IsNegative() {
			continue
		}
		if !since.IsZero() && !tx.Date.After(since) {
			continue
		}

		key := tx.PersonalFinanceCategory
		if key == "" {
			key = UnknownCategory
		}

		total, ok := totals[key]
		if !ok {
			total = &CategoryTotal{Category: key, Label: CategoryLabel(key), Amount: decimal.Zero}
			totals[key] = total
		}
		total.Amount = total.Amount.Add(tx.Amount.Abs())
		total.Count++
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, total := range totals {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})

	return out
}
