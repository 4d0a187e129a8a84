package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitsofe/pos-terminal/models"
)

const (
	// PageSize is the number of records loaded per page.
	PageSize = 40
	// PrefetchDistance is how close to the loaded tail a reader may get before the next
	// page is requested.
	PrefetchDistance = 20

	upsertBatchSize = 200
)

// ProductStore is the durable, queryable cache of catalog records.
type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// UpsertAll inserts or overwrites records by id in one transaction.
func (s *ProductStore) UpsertAll(ctx context.Context, records []models.Product) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(records, upsertBatchSize).Error
	})
	return wrap("upsert", err)
}

// Clear deletes every record.
func (s *ProductStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Product{}).Error
	return wrap("clear", err)
}

// Count returns the number of cached records.
func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// GetByBarcode finds the record with exactly this barcode after trimming. When several
// records share a barcode the lowest id wins. A miss returns nil, nil.
func (s *ProductStore) GetByBarcode(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var found []models.Product
	err := s.db.WithContext(ctx).
		Where("barcode = ?", code).
		Order("id ASC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, wrap("get by barcode", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// GetByIDs loads the given ids in no particular order. Unknown ids are simply absent.
func (s *ProductStore) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var out []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, wrap("get by ids", err)
	}
	return out, nil
}

// FetchPage returns up to limit records ordered by name (case-insensitive), starting at
// offset. A blank search returns everything; otherwise name or barcode must contain the
// text, case-insensitively.
func (s *ProductStore) FetchPage(ctx context.Context, search string, offset, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = PageSize
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Product{})
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		esc := s.likeEscape()
		q = q.Where("LOWER(name) LIKE ?"+esc+" OR LOWER(barcode) LIKE ?"+esc, pattern, pattern)
	}

	var out []models.Product
	err := q.Order("LOWER(name) ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, wrap("page query", err)
	}
	return out, nil
}

// PageQuery starts a lazily loaded, restartable sequence for search. The pager stops
// loading once ctx is cancelled.
func (s *ProductStore) PageQuery(ctx context.Context, search string) *Pager {
	return NewPager(ctx, search, s.FetchPage)
}

// likeEscape returns the ESCAPE clause for dialects without a default escape character.
func (s *ProductStore) likeEscape() string {
	if s.db.Dialector.Name() == "sqlite" {
		return ` ESCAPE '\'`
	}
	return ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
