package action

import (
	"fmt"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

type operation int

const (
	opCreate operation = iota
	opUpdate
	opDelete
	opCreateItem
	opDeleteItem
	opUpdateItems
	opMoveItems
)

type messages struct {
	success string
	failure string
}

var entryMessages = map[domain.Kind]map[operation]messages{
	domain.KindBudget: {
		opCreate:      {"Budget created", "Error creating budget"},
		opUpdate:      {"Budget updated", "Error updating budget"},
		opDelete:      {"Budget deleted", "Error deleting budget"},
		opCreateItem:  {"Expense saved", "Error saving expense"},
		opDeleteItem:  {"Expense deleted", "Error deleting expense"},
		opUpdateItems: {"Budget expenses saved", "Error saving budget expenses"},
		opMoveItems:   {"Expenses moved", "Error moving expenses"},
	},
	domain.KindLoan: {
		opCreate:      {"Loan created", "Error creating loan"},
		opUpdate:      {"Loan updated", "Error updating loan"},
		opDelete:      {"Loan deleted", "Error deleting loan"},
		opCreateItem:  {"Installment saved", "Error saving installment"},
		opDeleteItem:  {"Installment deleted", "Error deleting installment"},
		opUpdateItems: {"Loan installments saved", "Error saving loan installments"},
		opMoveItems:   {"Installments moved", "Error moving installments"},
	},
}

var todoMessages = map[operation]messages{
	opCreate: {"Todo saved", "Error saving todo"},
	opUpdate: {"Todo updated", "Error updating todo"},
	opDelete: {"Todo deleted", "Error deleting todo"},
}

var accountMessages = messages{"Account data deleted", "Error deleting account data"}

func messagesFor(kind domain.Kind, op operation) messages {
	if m, ok := entryMessages[kind][op]; ok {
		return m
	}
	return messages{"Done", "Something went wrong"}
}

func notUniqueReason(err *domain.ErrNotUnique) string {
	return fmt.Sprintf("A %s named %q already exists", err.Resource, err.Name)
}
