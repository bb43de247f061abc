package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/pagination"
)

// LoanRepository defines persistence operations for the loans table.
type LoanRepository interface {
	WithTx(tx *gorm.DB) LoanRepository
	Create(ctx context.Context, loan *models.Loan) (*models.Loan, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// MarkReturned closes an active loan. A loan that is no longer active
	// matches no rows and yields db.ErrStaleVersion.
	MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) error
	List(ctx context.Context, params pagination.Params, filters LoanFilters) (*pagination.Page[models.Loan], error)
	ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]models.Loan, error)
	// InventoryCounts reads copy counts and active loans per book in one
	// statement. A nil bookID covers the whole catalog.
	InventoryCounts(ctx context.Context, bookID *uuid.UUID) ([]InventoryCount, error)
	// OverduePage returns up to limit active loans due before asOf, ordered by
	// due date then id, starting strictly after the given position.
	OverduePage(ctx context.Context, asOf time.Time, after *OverduePosition, limit int) ([]models.Loan, error)
}
