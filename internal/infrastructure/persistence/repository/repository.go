package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"disasterwatch/internal/ports"
)

// dbFromContext returns the transaction carried by ctx, or the root handle.
func dbFromContext(ctx context.Context, root *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return root.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn in the ctx transaction, opening one when ctx carries none.
func inTx(ctx context.Context, root *gorm.DB, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := dbFromContext(ctx, root)
		if err != nil {
			return err
		}
		return fn(db)
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return root.WithContext(ctx).Transaction(fn)
}
