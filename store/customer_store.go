package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/sitsofe/pos-terminal/models"
)

// CustomerStore caches the subsidiary's customer directory.
type CustomerStore struct {
	db *gorm.DB
}

func NewCustomerStore(db *gorm.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// ReplaceAll swaps the cached directory for customers atomically.
func (s *CustomerStore) ReplaceAll(ctx context.Context, customers []models.Customer) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Customer{}).Error; err != nil {
			return err
		}
		if len(customers) == 0 {
			return nil
		}
		return tx.CreateInBatches(customers, upsertBatchSize).Error
	})
	return wrap("replace customers", err)
}

// GetAll returns the cached directory ordered by name.
func (s *CustomerStore) GetAll(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := s.db.WithContext(ctx).Order("LOWER(name) ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, wrap("list customers", err)
	}
	return out, nil
}
