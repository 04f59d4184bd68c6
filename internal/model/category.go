package model

import "slices"

// InvestmentCategory is the expense category counted towards the savings rate.
const InvestmentCategory = "Investimentos"

// IncomeCategories is the closed set of labels for income transactions.
var IncomeCategories = []string{
	"Salário", "Pro-labore", "Dividendos", "Investimentos", "Empresa", "Vendas", "Outros",
}

// ExpenseCategories is the closed set of labels for expense transactions.
var ExpenseCategories = []string{
	"Mercado", "Lanche", "Lazer", "Transporte", "Saúde", "Educação",
	"E-commerce", "Compras Físicas", "Investimentos", "Empresa",
	"Moradia", "Assinaturas", "Pet", "Bem-estar", "Outros",
}

// CategoriesFor returns the enumeration that matches a transaction type.
func CategoriesFor(t TransactionType) []string {
	switch t {
	case Income:
		return IncomeCategories
	case Expense:
		return ExpenseCategories
	default:
		return nil
	}
}

// ValidCategory reports whether category belongs to the enumeration for t.
func ValidCategory(t TransactionType, category string) bool {
	return slices.Contains(CategoriesFor(t), category)
}
