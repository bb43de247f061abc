package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/pagination"
)

// Repository defines persistence operations for the books table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, book *models.Book) (*models.Book, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*models.Book, error)
	// Save writes book only if its stored version still equals book.Version,
	// then advances book.Version. A lost race returns db.ErrStaleVersion.
	Save(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters BookFilters) (*pagination.Page[models.Book], error)
	CountActiveLoans(ctx context.Context, bookID uuid.UUID) (int64, error)
	CountLoans(ctx context.Context, bookID uuid.UUID) (int64, error)
}
