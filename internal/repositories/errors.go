package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"rogerbox/pkg/utils"
)

// ErrDuplicateReference is returned when an order reference already exists.
var ErrDuplicateReference = fmt.Errorf("%w: duplicate order reference", utils.ErrConflict)

// IsUniqueViolation recognises unique constraint failures from both the
// translated gorm error and raw driver messages.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", utils.ErrNotFound, what)
	}
	return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
}
