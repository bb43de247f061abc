package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) FindByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) Save(ctx context.Context, book *models.Book) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND version = ?", book.ID, book.Version).
		Updates(map[string]any{
			"isbn":             book.ISBN,
			"title":            book.Title,
			"author":           book.Author,
			"publisher":        book.Publisher,
			"publication_year": book.PublicationYear,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleVersion
	}
	book.Version++
	book.UpdatedAt = now
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters BookFilters) (*pagination.Page[models.Book], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Book{})
	if title := strings.TrimSpace(filters.Title); title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%")
	}
	if cursor != nil {
		query = query.Where("(title > ?) OR (title = ? AND id > ?)", cursor.Key, cursor.Key, cursor.ID)
	}

	var rows []models.Book
	if err := query.
		Order("title ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	page := pagination.Trim(rows, params.Limit, func(b models.Book) pagination.Cursor {
		return pagination.Cursor{Key: b.Title, ID: b.ID}
	})
	return &page, nil
}

func (r *repository) CountActiveLoans(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("book_id = ? AND status = ?", bookID, enums.LoanStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) CountLoans(ctx context.Context, bookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("book_id = ?", bookID).
		Count(&count).Error
	return count, err
}
