package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/family-finance/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func income(amount, date string) model.Transaction {
	return model.Transaction{Type: model.Income, Amount: dec(amount), Date: date, Category: "Salário", UserID: "u-1"}
}

func expense(amount, category, date string) model.Transaction {
	return model.Transaction{Type: model.Expense, Amount: dec(amount), Category: category, Date: date, UserID: "u-1"}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, label ...string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), label)
}

// =========================================================================
// MONTH FILTER + TOTALS
// =========================================================================

func TestFilterMonth_PrefixMatch(t *testing.T) {
	txs := []model.Transaction{
		income("1", "2025-01-01"),
		income("2", "2025-01-31T23:59:59Z"),
		income("3", "2025-02-01"),
		income("4", "2024-01-15"),
	}

	got := FilterMonth(txs, "2025-01")

	require.Len(t, got, 2)
	assertDec(t, "1", got[0].Amount)
	assertDec(t, "2", got[1].Amount)
}

func TestComputeTotals_BalanceIsIncomeMinusExpense(t *testing.T) {
	cases := [][]model.Transaction{
		nil,
		{income("1000", "2025-01-05")},
		{expense("300", "Mercado", "2025-01-06")},
		{income("1000", "2025-01-05"), expense("300", "Mercado", "2025-01-06"), expense("800.25", "Lazer", "2025-01-07")},
		{income("0.10", "2025-01-05"), income("0.20", "2025-01-05"), expense("0.30", "Pet", "2025-01-05")},
	}

	for _, txs := range cases {
		totals := ComputeTotals(txs)
		assert.True(t, totals.Income.Sub(totals.Expense).Equal(totals.Balance),
			"income %s - expense %s != balance %s", totals.Income, totals.Expense, totals.Balance)
	}

	last := ComputeTotals(cases[4])
	assertDec(t, "0", last.Balance, "decimal arithmetic must not drift")
}

// =========================================================================
// INVESTMENT + SAVINGS RATE
// =========================================================================

func TestInvestmentTotal_OnlyExpenseInvestments(t *testing.T) {
	txs := []model.Transaction{
		expense("2500", model.InvestmentCategory, "2025-01-04"),
		{Type: model.Income, Amount: dec("900"), Category: model.InvestmentCategory, Date: "2025-01-04"},
		expense("100", "Mercado", "2025-01-04"),
	}

	assertDec(t, "2500", InvestmentTotal(txs))
}

func TestSavingsRate(t *testing.T) {
	assert.Equal(t, 0.0, SavingsRate(dec("2500"), decimal.Zero), "zero income means zero rate")
	assert.Equal(t, 0.0, SavingsRate(decimal.Zero, decimal.Zero))
	assert.InDelta(t, 20.0, SavingsRate(dec("2500"), dec("12500")), 1e-9)
}

func TestUsageRate(t *testing.T) {
	assert.Equal(t, 0.0, UsageRate(dec("300"), decimal.Zero))
	assert.InDelta(t, 30.0, UsageRate(dec("300"), dec("1000")), 1e-9)
}

// =========================================================================
// CATEGORY BREAKDOWN
// =========================================================================

func TestCategoryBreakdown_FirstOccurrenceOrder(t *testing.T) {
	txs := []model.Transaction{
		expense("10", "Transporte", "2025-01-01"),
		expense("20", "Mercado", "2025-01-02"),
		income("999", "2025-01-02"),
		expense("5", "Transporte", "2025-01-03"),
		expense("1", "Assinaturas", "2025-01-03"),
	}

	got := CategoryBreakdown(txs)

	require.Len(t, got, 3)
	assert.Equal(t, "Transporte", got[0].Category)
	assertDec(t, "15", got[0].Total)
	assert.Equal(t, "Mercado", got[1].Category)
	assert.Equal(t, "Assinaturas", got[2].Category)
}

func TestCategoryBreakdown_EmptyIsNotNil(t *testing.T) {
	got := CategoryBreakdown(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// =========================================================================
// TREND
// =========================================================================

func TestTrend_SevenDaysOldestFirst(t *testing.T) {
	today := time.Date(2025, 3, 2, 15, 0, 0, 0, time.UTC)
	txs := []model.Transaction{
		expense("10", "Lanche", "2025-03-02T08:00:00Z"),
		expense("5", "Lanche", "2025-03-02"),
		expense("7", "Mercado", "2025-02-24"),
		expense("99", "Mercado", "2025-02-23"), // outside the window
		income("1000", "2025-03-01"),
	}

	got := Trend(txs, today)

	require.Len(t, got, TrendDays)
	assert.Equal(t, "2025-02-24", got[0].Day)
	assert.Equal(t, "2025-03-02", got[6].Day)
	assertDec(t, "7", got[0].Amount)
	assertDec(t, "15", got[6].Amount)
	assertDec(t, "0", got[5].Amount, "income is not part of the trend")
}

// A host clock west of UTC must still put a freshly stamped UTC date in
// today's slot.
func TestTrend_TodayIsAUTCDay(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	today := time.Date(2025, 1, 20, 22, 30, 0, 0, saoPaulo)
	txs := []model.Transaction{
		expense("40", "Lanche", today.UTC().Format(time.RFC3339)), // 2025-01-21T01:30:00Z
	}

	got := Trend(txs, today)

	assert.Equal(t, "2025-01-21", got[TrendDays-1].Day)
	assertDec(t, "40", got[TrendDays-1].Amount)
}

// =========================================================================
// MEMBER SPEND
// =========================================================================

func TestMemberSpend(t *testing.T) {
	txs := []model.Transaction{
		{UserID: "u-2", Type: model.Expense, Amount: dec("150.50"), Category: "Saúde", Date: "2025-01-10"},
		{UserID: "u-2", Type: model.Expense, Amount: dec("20"), Category: "Saúde", Date: "2025-02-10"},
		{UserID: "u-2", Type: model.Income, Amount: dec("3200"), Category: "Vendas", Date: "2025-01-10"},
		{UserID: "u-3", Type: model.Expense, Amount: dec("95"), Category: "Transporte", Date: "2025-01-10"},
	}

	assertDec(t, "150.50", MemberSpend(txs, "2025-01", "u-2"))
	assertDec(t, "95", MemberSpend(txs, "2025-01", "u-3"))
	assertDec(t, "0", MemberSpend(txs, "2025-01", "u-9"))
}

// =========================================================================
// BUDGET CONSUMPTION
// =========================================================================

func TestBudgetConsumption(t *testing.T) {
	tests := []struct {
		name        string
		limit       string
		spent       []string
		wantPercent float64
		wantOver    bool
	}{
		{"nothing spent", "200", nil, 0, false},
		{"half", "200", []string{"60", "40"}, 50, false},
		{"exactly at limit", "200", []string{"200"}, 100, false},
		{"over limit caps percent", "200", []string{"300"}, 100, true},
		{"zero limit with spend", "0", []string{"1"}, 100, true},
		{"zero limit no spend", "0", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []model.Transaction
			for _, s := range tt.spent {
				txs = append(txs, expense(s, "Mercado", "2025-01-15"))
			}
			txs = append(txs, expense("1000", "Lazer", "2025-01-15"))    // other category
			txs = append(txs, expense("1000", "Mercado", "2024-12-31")) // other month

			got := BudgetConsumption(txs, "2025-01", model.Budget{Category: "Mercado", Limit: dec(tt.limit)})

			assert.InDelta(t, tt.wantPercent, got.Percent, 1e-9)
			assert.GreaterOrEqual(t, got.Percent, 0.0)
			assert.LessOrEqual(t, got.Percent, 100.0)
			assert.Equal(t, tt.wantOver, got.OverLimit)
			assert.Equal(t, got.Spent.GreaterThan(got.Limit), got.OverLimit)
		})
	}
}

// =========================================================================
// END-TO-END SCENARIOS
// =========================================================================

func TestScenario_MonthlyBalanceAndBreakdown(t *testing.T) {
	txs := []model.Transaction{
		{Type: model.Income, Amount: dec("1000"), Date: "2025-01-05", Category: "Salário"},
		{Type: model.Expense, Amount: dec("300"), Category: "Mercado", Date: "2025-01-06"},
	}

	s := Summarize(txs, "2025-01", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))

	assertDec(t, "700", s.Totals.Balance)
	require.Len(t, s.CategoryBreakdown, 1)
	assert.Equal(t, "Mercado", s.CategoryBreakdown[0].Category)
	assertDec(t, "300", s.CategoryBreakdown[0].Total)
	assert.Equal(t, 0.0, s.SavingsRate)
	assert.InDelta(t, 30.0, s.UsageRate, 1e-9)
	assert.Len(t, s.Trend, TrendDays)
}

func TestScenario_BudgetOverLimit(t *testing.T) {
	txs := []model.Transaction{expense("300", "Mercado", "2025-01-06")}

	got := BudgetConsumption(txs, "2025-01", model.Budget{Category: "Mercado", Limit: dec("200")})

	assert.Equal(t, 100.0, got.Percent)
	assert.True(t, got.OverLimit)
}
