package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tells whether a transaction adds to or takes from the balance.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// DefaultDescription is stored when a transaction is created without one.
const DefaultDescription = "Sem descrição"

// Transaction is a single income or expense entry owned by one user.
//
// AMOUNT: always stored as a non-negative magnitude; Type carries the sign.
// decimal.Decimal accepts both JSON numbers and numeric strings when decoding,
// so a backend that sends "150.50" and one that sends 150.50 produce the same
// value. No code past the decoder ever sees a string amount.
//
// DATE: kept as the ISO string it was written with ("2025-01-05" or an RFC 3339
// timestamp). Month and day grouping compare string prefixes, so every stored
// date must start with YYYY-MM-DD; see ValidDate.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	FamilyID    *string         `json:"familyId,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Day returns the YYYY-MM-DD part of the transaction date.
func (t Transaction) Day() string {
	if len(t.Date) < len(dayLayout) {
		return t.Date
	}
	return t.Date[:len(dayLayout)]
}

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// ValidDate reports whether s starts with a real calendar day in YYYY-MM-DD
// form. Anything after the day (a time, a zone) must itself be RFC 3339.
func ValidDate(s string) bool {
	if len(s) < len(dayLayout) {
		return false
	}
	if _, err := time.Parse(dayLayout, s[:len(dayLayout)]); err != nil {
		return false
	}
	if len(s) == len(dayLayout) {
		return true
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

// ValidMonth reports whether s is a YYYY-MM month key.
func ValidMonth(s string) bool {
	if len(s) != len(monthLayout) {
		return false
	}
	_, err := time.Parse(monthLayout, s)
	return err == nil
}

// MonthOf returns the YYYY-MM key for t, taken in UTC.
//
// WHY UTC?
// Default transaction dates are stamped in UTC, and month and day selection
// compare string prefixes of those stamps. "This month" and "today" must be
// cut on the same clock, or an expense recorded late in the evening on a
// host west of Greenwich lands outside today's trend slot or in the wrong
// month.
func MonthOf(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// DayOf returns the YYYY-MM-DD key for t, taken in UTC.
func DayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	FamilyID    *string         `json:"familyId"`
}

// TransactionPatch is a partial update: nil fields are left unchanged.
type TransactionPatch struct {
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        *string          `json:"date"`
	Type        *TransactionType `json:"type"`
	Category    *string          `json:"category"`
	FamilyID    *string          `json:"familyId"`
}
