package members

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a members repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindByNumber(ctx context.Context, memberNumber string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("member_number = ?", memberNumber).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) UpdateContact(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.updateOne(ctx, id, updates)
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) error {
	return r.updateOne(ctx, id, map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repository) updateOne(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters MemberFilters) (*pagination.Page[models.Member], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Member{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		query = query.Where("(member_number > ?) OR (member_number = ? AND id > ?)", cursor.Key, cursor.Key, cursor.ID)
	}

	var rows []models.Member
	if err := query.
		Order("member_number ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	page := pagination.Trim(rows, params.Limit, func(m models.Member) pagination.Cursor {
		return pagination.Cursor{Key: m.MemberNumber, ID: m.ID}
	})
	return &page, nil
}
