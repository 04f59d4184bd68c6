// Package stats reduces a list of transactions into the figures shown on the
// dashboard: monthly totals, savings rate, category mix, a seven-day spending
// trend, per-member spend and budget consumption.
//
// Every function is pure and makes a single pass over its input.
//
// MONTH SELECTION BY PREFIX:
// A transaction belongs to month "2025-01" when its Date starts with
// "2025-01"; no date is ever parsed here. "2025-01-31T22:00:00Z" is a
// January transaction even though it is already February in UTC+3. That
// only holds while every stored date starts with YYYY-MM-DD, which
// model.ValidDate enforces on every write. The same prefix rule picks the
// day of a trend slot (Transaction.Day).
package stats

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/family-finance/internal/model"
)

// TrendDays is the length of the spending trend window.
const TrendDays = 7

var hundred = decimal.NewFromInt(100)

// Totals is the income/expense/balance triple for a set of transactions.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// DayTotal is the expense total of one calendar day.
type DayTotal struct {
	Day    string          `json:"day"`
	Amount decimal.Decimal `json:"amount"`
}

// BudgetStatus is how much of a budget has been consumed.
//
// Percent is capped at 100, so it cannot signal overage on its own; OverLimit
// carries that separately.
type BudgetStatus struct {
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Percent   float64         `json:"percent"`
	OverLimit bool            `json:"overLimit"`
}

// Summary is every dashboard figure for one month.
type Summary struct {
	Month             string          `json:"month"`
	Totals            Totals          `json:"totals"`
	InvestmentTotal   decimal.Decimal `json:"investmentTotal"`
	SavingsRate       float64         `json:"savingsRate"`
	UsageRate         float64         `json:"usageRate"`
	CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`
	Trend             []DayTotal      `json:"trend"`
}

// FilterMonth keeps the transactions whose date starts with month (YYYY-MM).
func FilterMonth(txs []model.Transaction, month string) []model.Transaction {
	out := make([]model.Transaction, 0, len(txs))
	for _, t := range txs {
		if strings.HasPrefix(t.Date, month) {
			out = append(out, t)
		}
	}
	return out
}

// ComputeTotals sums income and expense and derives the balance.
func ComputeTotals(txs []model.Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case model.Income:
			income = income.Add(t.Amount)
		case model.Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// InvestmentTotal sums the expense transactions filed under the investment category.
func InvestmentTotal(txs []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == model.Expense && t.Category == model.InvestmentCategory {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// SavingsRate is investment as a percentage of income; 0 when there is no income.
func SavingsRate(investment, income decimal.Decimal) float64 {
	return percentOf(investment, income)
}

// UsageRate is expense as a percentage of income; 0 when there is no income.
func UsageRate(expense, income decimal.Decimal) float64 {
	return percentOf(expense, income)
}

func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// CategoryBreakdown groups expenses by category. Categories appear in the
// order of their first transaction, not sorted.
func CategoryBreakdown(txs []model.Transaction) []CategoryTotal {
	index := make(map[string]int)
	out := make([]CategoryTotal, 0)
	for _, t := range txs {
		if t.Type != model.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryTotal{Category: t.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(t.Amount)
	}
	return out
}

// Trend returns the expense total of each of the TrendDays calendar days
// ending on today (inclusive), oldest first. Days are UTC days, the clock
// default transaction dates are stamped on.
func Trend(txs []model.Transaction, today time.Time) []DayTotal {
	out := make([]DayTotal, TrendDays)
	slot := make(map[string]int, TrendDays)
	for i := range TrendDays {
		day := model.DayOf(today.AddDate(0, 0, i-(TrendDays-1)))
		out[i] = DayTotal{Day: day, Amount: decimal.Zero}
		slot[day] = i
	}
	for _, t := range txs {
		if t.Type != model.Expense {
			continue
		}
		if i, ok := slot[t.Day()]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
		}
	}
	return out
}

// MemberSpend sums the expenses of one member within month.
func MemberSpend(txs []model.Transaction, month, memberID string) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.UserID == memberID && t.Type == model.Expense && strings.HasPrefix(t.Date, month) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// BudgetConsumption computes how much of b has been spent within month.
// A zero limit reads as fully consumed as soon as anything is spent.
func BudgetConsumption(txs []model.Transaction, month string, b model.Budget) BudgetStatus {
	spent := decimal.Zero
	for _, t := range txs {
		if t.Type == model.Expense && t.Category == b.Category && strings.HasPrefix(t.Date, month) {
			spent = spent.Add(t.Amount)
		}
	}

	var percent float64
	switch {
	case b.Limit.IsPositive():
		percent = min(spent.Div(b.Limit).Mul(hundred).InexactFloat64(), 100)
	case spent.IsPositive():
		percent = 100
	}

	return BudgetStatus{
		Category:  b.Category,
		Limit:     b.Limit,
		Spent:     spent,
		Percent:   max(percent, 0),
		OverLimit: spent.GreaterThan(b.Limit),
	}
}

// Summarize builds the dashboard for month. The trend looks at the trailing
// week ending today across all of txs, independent of the selected month.
func Summarize(txs []model.Transaction, month string, today time.Time) Summary {
	inMonth := FilterMonth(txs, month)
	totals := ComputeTotals(inMonth)
	investment := InvestmentTotal(inMonth)

	return Summary{
		Month:             month,
		Totals:            totals,
		InvestmentTotal:   investment,
		SavingsRate:       SavingsRate(investment, totals.Income),
		UsageRate:         UsageRate(totals.Expense, totals.Income),
		CategoryBreakdown: CategoryBreakdown(inMonth),
		Trend:             Trend(txs, today),
	}
}
