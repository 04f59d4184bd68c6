package model

import "github.com/shopspring/decimal"

// Budget is a spending limit for one expense category.
type Budget struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

// DefaultBudgets is the list a user starts with before saving any budget.
func DefaultBudgets() []Budget {
	return []Budget{
		{Category: "Mercado", Limit: decimal.NewFromInt(2000)},
		{Category: "Lanche", Limit: decimal.NewFromInt(500)},
		{Category: "Investimentos", Limit: decimal.NewFromInt(3000)},
		{Category: "Transporte", Limit: decimal.NewFromInt(400)},
	}
}
