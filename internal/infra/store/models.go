package store

import (
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Table rows
// ============================================================

type budgetRow struct {
	ID             string          `gorm:"type:varchar(36);primaryKey"`
	OwnerID        string          `gorm:"type:varchar(128);not null;index"`
	Name           string          `gorm:"type:varchar(255);not null"`
	TotalQuota     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BgColor        string          `gorm:"type:varchar(16);not null"`
	ExpensesTotal  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	AvailableQuota decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt      time.Time       `gorm:"index"`
	UpdatedAt      time.Time       `gorm:"index"`
}

func (budgetRow) TableName() string { return "budgets" }

type loanRow struct {
	ID                string          `gorm:"type:varchar(36);primaryKey"`
	OwnerID           string          `gorm:"type:varchar(128);not null;index"`
	Name              string          `gorm:"type:varchar(255);not null"`
	TotalDebt         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BgColor           string          `gorm:"type:varchar(16);not null"`
	IsAgainst         bool            `gorm:"not null;default:false"`
	InstallmentsTotal decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DueAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt         time.Time       `gorm:"index"`
	UpdatedAt         time.Time       `gorm:"index"`
}

func (loanRow) TableName() string { return "loans" }

// Child rows carry a belongs-to reference so AutoMigrate emits the foreign key
// with ON DELETE CASCADE.
type expenseRow struct {
	ID        string          `gorm:"type:varchar(36);primaryKey"`
	ParentID  string          `gorm:"column:budget_id;type:varchar(36);not null;index"`
	Budget    *budgetRow      `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"index"`
	UpdatedAt time.Time
}

func (expenseRow) TableName() string { return "expenses" }

type installmentRow struct {
	ID        string          `gorm:"type:varchar(36);primaryKey"`
	ParentID  string          `gorm:"column:loan_id;type:varchar(36);not null;index"`
	Loan      *loanRow        `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"index"`
	UpdatedAt time.Time
}

func (installmentRow) TableName() string { return "installments" }

type todoRow struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	OwnerID   string `gorm:"type:varchar(128);not null;uniqueIndex:idx_todos_owner_name"`
	Name      string `gorm:"type:varchar(255);not null;uniqueIndex:idx_todos_owner_name"`
	Completed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (todoRow) TableName() string { return "todos" }

func assignID(id *string) error {
	if *id == "" {
		*id = uuid.NewString()
	}
	return nil
}

func (r *budgetRow) BeforeCreate(*gorm.DB) error      { return assignID(&r.ID) }
func (r *loanRow) BeforeCreate(*gorm.DB) error        { return assignID(&r.ID) }
func (r *expenseRow) BeforeCreate(*gorm.DB) error     { return assignID(&r.ID) }
func (r *installmentRow) BeforeCreate(*gorm.DB) error { return assignID(&r.ID) }
func (r *todoRow) BeforeCreate(*gorm.DB) error        { return assignID(&r.ID) }

// ============================================================
// Per-kind table metadata
// ============================================================

// tables names the columns the generic entry and item statements touch.
type tables struct {
	entry     string
	item      string
	parentCol string
	capacity  string
	consumed  string
	remaining string
}

var kindTables = map[domain.Kind]tables{
	domain.KindBudget: {
		entry:     "budgets",
		item:      "expenses",
		parentCol: "budget_id",
		capacity:  "total_quota",
		consumed:  "expenses_total",
		remaining: "available_quota",
	},
	domain.KindLoan: {
		entry:     "loans",
		item:      "installments",
		parentCol: "loan_id",
		capacity:  "total_debt",
		consumed:  "installments_total",
		remaining: "due_amount",
	},
}

func tablesFor(kind domain.Kind) (tables, error) {
	t, ok := kindTables[kind]
	if !ok {
		return tables{}, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind: " + string(kind)}
	}
	return t, nil
}

// ============================================================
// Row <-> domain mapping
// ============================================================

func (r *budgetRow) toDomain() *domain.Budget {
	return &domain.Budget{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Name:           r.Name,
		TotalQuota:     r.TotalQuota,
		BgColor:        r.BgColor,
		ExpensesTotal:  r.ExpensesTotal,
		AvailableQuota: r.AvailableQuota,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r *loanRow) toDomain() *domain.Loan {
	return &domain.Loan{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		TotalDebt:         r.TotalDebt,
		BgColor:           r.BgColor,
		IsAgainst:         r.IsAgainst,
		InstallmentsTotal: r.InstallmentsTotal,
		DueAmount:         r.DueAmount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// itemRecord is the column set shared by expenses and installments, used to
// scan either table without knowing its row type.
type itemRecord struct {
	ID        string
	ParentID  string
	Name      string
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r itemRecord) toDomain() domain.Item {
	return domain.Item{
		ID:        r.ID,
		ParentID:  r.ParentID,
		Name:      r.Name,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *todoRow) toDomain() domain.Todo {
	return domain.Todo{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Completed: r.Completed,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
