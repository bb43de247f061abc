package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/pagination"
)

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository builds a loan repository bound to the provided DB.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) WithTx(tx *gorm.DB) LoanRepository {
	if tx == nil {
		return r
	}
	return &loanRepository{db: tx}
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	if err := r.db.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *loanRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&loan).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, enums.LoanStatusActive).
		Updates(map[string]any{
			"status":      enums.LoanStatusReturned,
			"return_date": returnedAt,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleVersion
	}
	return nil
}

func (r *loanRepository) List(ctx context.Context, params pagination.Params, filters LoanFilters) (*pagination.Page[models.Loan], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Loan{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.MemberID != nil {
		query = query.Where("member_id = ?", *filters.MemberID)
	}
	if filters.BookID != nil {
		query = query.Where("book_id = ?", *filters.BookID)
	}
	if cursor != nil {
		startedAt, err := cursor.Time()
		if err != nil {
			return nil, err
		}
		query = query.Where("(start_date < ?) OR (start_date = ? AND id < ?)", startedAt, startedAt, cursor.ID)
	}

	var rows []models.Loan
	if err := query.
		Order("start_date DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	page := pagination.Trim(rows, params.Limit, func(l models.Loan) pagination.Cursor {
		return pagination.Cursor{Key: pagination.TimeKey(l.StartDate), ID: l.ID}
	})
	return &page, nil
}

func (r *loanRepository) ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, enums.LoanStatusActive).
		Order("due_date ASC").
		Order("id ASC").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) InventoryCounts(ctx context.Context, bookID *uuid.UUID) ([]InventoryCount, error) {
	query := r.db.WithContext(ctx).
		Table("books AS b").
		Select("b.id AS book_id, b.isbn, b.total_copies, b.available_copies, COUNT(l.id) AS active_loans").
		Joins("LEFT JOIN loans AS l ON l.book_id = b.id AND l.status = ?", enums.LoanStatusActive)
	if bookID != nil {
		query = query.Where("b.id = ?", *bookID)
	}

	var rows []InventoryCount
	err := query.
		Group("b.id, b.isbn, b.total_copies, b.available_copies").
		Order("b.isbn ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *loanRepository) OverduePage(ctx context.Context, asOf time.Time, after *OverduePosition, limit int) ([]models.Loan, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", enums.LoanStatusActive, asOf)
	if after != nil {
		query = query.Where("(due_date > ?) OR (due_date = ? AND id > ?)", after.DueDate, after.DueDate, after.ID)
	}

	var loans []models.Loan
	err := query.
		Order("due_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}
