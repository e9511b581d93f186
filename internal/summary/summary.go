// Package summary derives totals and per-category breakdowns from an expense list.
// Everything here is pure: the same input always yields the same output.
package summary

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/govalues/money"

	"github.com/tinoosan/expenses/internal/ledger"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "USD"

// CategoryTotal is one row of the breakdown.
type CategoryTotal struct {
	Category   ledger.Category `json:"category"`
	Amount     float64         `json:"amount"`
	Percentage float64         `json:"percentage"`
}

// Total sums every amount. An empty ledger totals 0.
func Total(expenses []ledger.Expense) float64 {
	var sum float64
	for _, e := range expenses {
		sum += e.Amount
	}
	return sum
}

// ByCategory sums amounts per category. Absent categories have no key.
func ByCategory(expenses []ledger.Expense) map[ledger.Category]float64 {
	out := make(map[ledger.Category]float64)
	for _, e := range expenses {
		out[e.Category] += e.Amount
	}
	return out
}

// PercentageOf returns part/total*100. ok is false when total is not positive,
// in which case no division happens and 0 is returned.
func PercentageOf(part, total float64) (pct float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return part / total * 100, true
}

// Breakdown returns per-category totals sorted by amount descending.
// Categories with equal amounts keep the order in which they first appear.
func Breakdown(expenses []ledger.Expense) []CategoryTotal {
	total := Total(expenses)
	sums := make(map[ledger.Category]float64)
	order := make([]ledger.Category, 0)
	for _, e := range expenses {
		if _, seen := sums[e.Category]; !seen {
			order = append(order, e.Category)
		}
		sums[e.Category] += e.Amount
	}
	out := make([]CategoryTotal, 0, len(order))
	for _, c := range order {
		pct, _ := PercentageOf(sums[c], total)
		out = append(out, CategoryTotal{Category: c, Amount: sums[c], Percentage: pct})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// Summary is the full aggregation result served to clients.
type Summary struct {
	Currency     string        `json:"currency"`
	Count        int           `json:"count"`
	Total        float64       `json:"total"`
	TotalMinor   *int64        `json:"total_minor,omitempty"`
	TotalDisplay string        `json:"total_display"`
	Breakdown    []CategoryRow `json:"breakdown"`
}

// CategoryRow decorates a CategoryTotal with display strings.
type CategoryRow struct {
	CategoryTotal
	AmountDisplay     string `json:"amount_display"`
	PercentageDisplay string `json:"percentage_display"`
}

// Summarize computes the summary for expenses. Each amount is rounded to the
// currency's minor unit and summed exactly; TotalMinor is nil when that sum
// cannot be represented. Only an unknown currency is an error.
func Summarize(expenses []ledger.Expense, currency string) (Summary, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	curr, err := money.ParseCurr(currency)
	if err != nil {
		return Summary{}, fmt.Errorf("currency %q: %w", currency, err)
	}
	total := Total(expenses)
	s := Summary{
		Currency:     curr.Code(),
		Count:        len(expenses),
		Total:        total,
		TotalDisplay: FormatAmount(total),
		Breakdown:    []CategoryRow{},
	}
	if units, ok := TotalMinor(expenses, curr); ok {
		s.TotalMinor = &units
	}
	for _, ct := range Breakdown(expenses) {
		s.Breakdown = append(s.Breakdown, CategoryRow{
			CategoryTotal:     ct,
			AmountDisplay:     FormatAmount(ct.Amount),
			PercentageDisplay: strconv.FormatFloat(ct.Percentage, 'f', 0, 64) + "%",
		})
	}
	return s, nil
}

// TotalMinor sums the ledger in minor units of curr (cents, yen, fils).
// ok is false when an amount or the sum does not fit the decimal range.
func TotalMinor(expenses []ledger.Expense, curr money.Currency) (units int64, ok bool) {
	sum, err := money.NewAmountFromMinorUnits(curr.Code(), 0)
	if err != nil {
		return 0, false
	}
	for _, e := range expenses {
		amt, err := amountOf(curr, e.Amount)
		if err != nil {
			return 0, false
		}
		if sum, err = sum.Add(amt); err != nil {
			return 0, false
		}
	}
	return sum.MinorUnits()
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// amountOf rounds v to the currency scale before parsing, so sub-unit
// fractions never reach the decimal parser.
func amountOf(curr money.Currency, v float64) (money.Amount, error) {
	return money.ParseAmount(curr.Code(), strconv.FormatFloat(v, 'f', curr.Scale(), 64))
}
