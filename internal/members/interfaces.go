package members

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/pagination"
)

// Repository defines persistence operations for the members table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) (*models.Member, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByNumber(ctx context.Context, memberNumber string) (*models.Member, error)
	UpdateContact(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) error
	List(ctx context.Context, params pagination.Params, filters MemberFilters) (*pagination.Page[models.Member], error)
}
