package repositories

import (
	"context"
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"strings"
)

var ErrStoreUnavailable = errors.New("postings store unavailable")

const insertBatchSize = 100

type PostingsFilter struct {
	Modules []string
	Search  string
	Offset  int
	Limit   int
}

type Postings struct {
	db *gorm.DB
}

func NewPostingsRepository(db *gorm.DB) *Postings {
	return &Postings{db: db}
}

func (repo *Postings) FindByLink(ctx context.Context, link string) (*entities.StoredPosting, error) {
	var posting entities.StoredPosting
	err := repo.db.WithContext(ctx).First(&posting, "link = ?", link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("find by link", err)
	}
	return &posting, nil
}

// InsertBatch creates the given postings in one transaction. Links that already
// exist are skipped, so the returned count is the number of rows actually created.
func (repo *Postings) InsertBatch(ctx context.Context, postings []entities.StoredPosting) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "link"}}, DoNothing: true}).
		CreateInBatches(&postings, insertBatchSize)
	if res.Error != nil {
		return 0, storeError("insert batch", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (repo *Postings) MarkResurfaced(ctx context.Context, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res := repo.db.WithContext(ctx).
		Model(&entities.StoredPosting{}).
		Where("id IN ?", ids).
		Update("is_new", true)
	if res.Error != nil {
		return 0, storeError("mark resurfaced", res.Error)
	}
	return int(res.RowsAffected), nil
}

// MarkStale clears the is_new flag of the module's postings that were not part of
// its latest successful fetch.
func (repo *Postings) MarkStale(ctx context.Context, module string, seenLinks []string) (int, error) {
	query := repo.db.WithContext(ctx).
		Model(&entities.StoredPosting{}).
		Where("module = ? AND is_new = ?", module, true)
	if len(seenLinks) > 0 {
		query = query.Where("link NOT IN ?", seenLinks)
	}

	res := query.Update("is_new", false)
	if res.Error != nil {
		return 0, storeError("mark stale", res.Error)
	}
	return int(res.RowsAffected), nil
}

// BackfillModule sets the module of a stored posting only if it has none yet.
func (repo *Postings) BackfillModule(ctx context.Context, id uint, module string) error {
	err := repo.db.WithContext(ctx).
		Model(&entities.StoredPosting{}).
		Where("id = ? AND (module IS NULL OR module = '')", id).
		Update("module", module).Error
	return storeError("backfill module", err)
}

func (repo *Postings) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := repo.db.WithContext(ctx).Model(&entities.StoredPosting{}).Count(&count).Error; err != nil {
		return 0, storeError("count all", err)
	}
	return count, nil
}

// List returns postings newest first, plus the total number matching the filter.
func (repo *Postings) List(ctx context.Context, filter PostingsFilter) ([]entities.StoredPosting, int64, error) {
	query := repo.db.WithContext(ctx).Model(&entities.StoredPosting{})

	if len(filter.Modules) > 0 {
		query = query.Where("module IN ?", filter.Modules)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(company) LIKE ? OR LOWER(location) LIKE ?)",
			term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError("count postings", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var postings []entities.StoredPosting
	if err := query.Order("first_seen DESC").Order("id DESC").
		Offset(filter.Offset).Limit(limit).Find(&postings).Error; err != nil {
		return nil, 0, storeError("list postings", err)
	}
	return postings, total, nil
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
