package store

import (
	"errors"
	"strings"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// isUniqueViolation matches the translated gorm error and, for drivers
// without a translator, the driver message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

// wrap logs a raw driver error and returns it as a store failure.
func (s *Store) wrap(op string, err error) error {
	s.logger.Error("store: statement failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: "store", Err: err}
}

// wrapWrite maps a unique violation on name to ErrNotUnique.
func (s *Store) wrapWrite(op, resource, name string, err error) error {
	if isUniqueViolation(err) {
		return &domain.ErrNotUnique{Resource: resource, Name: name}
	}
	return s.wrap(op, err)
}
