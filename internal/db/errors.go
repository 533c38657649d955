package db

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Custom database errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrForeignKey   = errors.New("foreign key constraint violation")
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate checks if error is a duplicate error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key constraint violation
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// MapGormError maps GORM and SQLite errors to the package errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	msg := err.Error()
	if containsAny(msg, "UNIQUE constraint", "unique constraint") {
		return ErrDuplicate
	}
	if containsAny(msg, "FOREIGN KEY constraint", "foreign key constraint") {
		return ErrForeignKey
	}
	if containsAny(msg, "CHECK constraint") {
		return ErrInvalidInput
	}

	return err
}

func containsAny(s string, substrs ...string) bool {
	return lo.SomeBy(substrs, func(sub string) bool {
		return strings.Contains(s, sub)
	})
}
