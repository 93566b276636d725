// Package domain defines the core entities of the finance tracker: budgets and
// loans (entries) with their expenses and installments (items), plus todos.
// These types are independent of the store and the HTTP surface.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is the behaviour shared by budgets and loans. The aggregate
// recalculation only depends on this interface and on Kind metadata.
type Entry interface {
	EntryKind() Kind
	EntryID() string
	Owner() string
	EntryName() string
	Capacity() decimal.Decimal
	Consumed() decimal.Decimal
	Remaining() decimal.Decimal
	Items() []Item
}

// RemainingOf derives the remaining balance of an entry. Negative results
// (over budget, over paid) are kept as-is.
func RemainingOf(capacity, consumed decimal.Decimal) decimal.Decimal {
	return capacity.Sub(consumed)
}

// ============================================================
// Budgets
// ============================================================

// Budget is a spending quota tracked through its expenses.
type Budget struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Name           string          `json:"name"`
	TotalQuota     decimal.Decimal `json:"totalQuota"`
	BgColor        string          `json:"bgColor"`
	ExpensesTotal  decimal.Decimal `json:"expensesTotal"`
	AvailableQuota decimal.Decimal `json:"availableQuota"`
	Expenses       []Item          `json:"expenses,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (b *Budget) EntryKind() Kind            { return KindBudget }
func (b *Budget) EntryID() string            { return b.ID }
func (b *Budget) Owner() string              { return b.OwnerID }
func (b *Budget) EntryName() string          { return b.Name }
func (b *Budget) Capacity() decimal.Decimal  { return b.TotalQuota }
func (b *Budget) Consumed() decimal.Decimal  { return b.ExpensesTotal }
func (b *Budget) Remaining() decimal.Decimal { return b.AvailableQuota }
func (b *Budget) Items() []Item              { return b.Expenses }

// ============================================================
// Loans
// ============================================================

// Loan is a debt tracked through its installments. IsAgainst is true when the
// owner is the debtor and false when the owner is the one owed.
type Loan struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"ownerId"`
	Name              string          `json:"name"`
	TotalDebt         decimal.Decimal `json:"totalDebt"`
	BgColor           string          `json:"bgColor"`
	IsAgainst         bool            `json:"isAgainst"`
	InstallmentsTotal decimal.Decimal `json:"installmentsTotal"`
	DueAmount         decimal.Decimal `json:"dueAmount"`
	Installments      []Item          `json:"installments,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (l *Loan) EntryKind() Kind            { return KindLoan }
func (l *Loan) EntryID() string            { return l.ID }
func (l *Loan) Owner() string              { return l.OwnerID }
func (l *Loan) EntryName() string          { return l.Name }
func (l *Loan) Capacity() decimal.Decimal  { return l.TotalDebt }
func (l *Loan) Consumed() decimal.Decimal  { return l.InstallmentsTotal }
func (l *Loan) Remaining() decimal.Decimal { return l.DueAmount }
func (l *Loan) Items() []Item              { return l.Installments }

// ============================================================
// Items (expenses / installments)
// ============================================================

// Item is a child row of an entry: an expense under a budget or an
// installment under a loan.
type Item struct {
	ID        string          `json:"id"`
	ParentID  string          `json:"parentId"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ============================================================
// Inputs
// ============================================================

// EntryInput carries the user-editable fields of a budget or loan.
// Capacity is the total quota of a budget or the total debt of a loan.
// IsAgainst is ignored for budgets.
type EntryInput struct {
	Name      string
	Capacity  decimal.Decimal
	BgColor   string
	IsAgainst bool
}

// ItemInput carries the fields of a new child item.
type ItemInput struct {
	Name   string
	Amount decimal.Decimal
}

// ItemUpdate is one row of a batch update. Rows without an ID are skipped.
type ItemUpdate struct {
	ID     string
	Name   string
	Amount decimal.Decimal
}

// ============================================================
// Todos
// ============================================================

// Todo is a simple per-owner checklist item.
type Todo struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TodoPatch is a partial todo update; nil fields are left untouched.
type TodoPatch struct {
	Name      *string
	Completed *bool
}

// ============================================================
// Overview
// ============================================================

// KindTotals sums the aggregate fields of every entry of one kind.
type KindTotals struct {
	Kind      Kind            `json:"kind"`
	Count     int             `json:"count"`
	Capacity  decimal.Decimal `json:"capacity"`
	Consumed  decimal.Decimal `json:"consumed"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Overview is the dashboard summary of one owner.
type Overview struct {
	Budgets   KindTotals `json:"budgets"`
	Loans     KindTotals `json:"loans"`
	OpenTodos int        `json:"openTodos"`
	Todos     int        `json:"todos"`
}
