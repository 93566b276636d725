package domain

import (
	"fmt"
	"strings"
)

// Resource is the fixed vocabulary of resource kinds used for cache tagging.
type Resource string

const (
	ResourceBudgets      Resource = "budgets"
	ResourceLoans        Resource = "loans"
	ResourceExpenses     Resource = "expenses"
	ResourceInstallments Resource = "installments"
	ResourceTodos        Resource = "todos"
	ResourceUsers        Resource = "users"
)

// Resources lists every resource kind, in a stable order.
func Resources() []Resource {
	return []Resource{
		ResourceBudgets,
		ResourceLoans,
		ResourceExpenses,
		ResourceInstallments,
		ResourceTodos,
		ResourceUsers,
	}
}

// Kind is the closed set of parent entry types.
type Kind string

const (
	KindBudget Kind = "budget"
	KindLoan   Kind = "loan"
)

// Kinds returns every entry kind.
func Kinds() []Kind {
	return []Kind{KindBudget, KindLoan}
}

// ParseKind accepts the singular or plural form ("budget", "budgets", ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "budget", "budgets":
		return KindBudget, nil
	case "loan", "loans":
		return KindLoan, nil
	}
	return "", &ErrValidation{Field: "kind", Message: fmt.Sprintf("unknown entry kind %q", s)}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindBudget || k == KindLoan
}

// Resource is the cache resource for entries of this kind.
func (k Kind) Resource() Resource {
	if k == KindLoan {
		return ResourceLoans
	}
	return ResourceBudgets
}

// ItemResource is the cache resource for the children of this kind.
func (k Kind) ItemResource() Resource {
	if k == KindLoan {
		return ResourceInstallments
	}
	return ResourceExpenses
}

// ItemLabel is the singular, human-readable name of a child item.
func (k Kind) ItemLabel() string {
	if k == KindLoan {
		return "installment"
	}
	return "expense"
}

// CapacityField is the input field holding the entry capacity.
func (k Kind) CapacityField() string {
	if k == KindLoan {
		return "totalDebt"
	}
	return "totalQuota"
}

func (k Kind) String() string { return string(k) }
