package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn in a transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics.
func (db *DB) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return fmt.Errorf("transaction error: %w", err)
		}
		return nil
	})
}
