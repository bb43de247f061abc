package members

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/pagination"
)

var memberNumberPattern = regexp.MustCompile(`^[0-9]{1,32}$`)

// Service exposes member registration and status management.
type Service interface {
	RegisterMember(ctx context.Context, input RegisterMemberInput) (*models.Member, error)
	UpdateContact(ctx context.Context, id uuid.UUID, input UpdateContactInput) (*models.Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetMemberByNumber(ctx context.Context, memberNumber string) (*models.Member, error)
	ListMembers(ctx context.Context, params pagination.Params, filters MemberFilters) (*pagination.Page[models.Member], error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (*models.Member, error)
}

type service struct {
	repo     Repository
	logg     *logger.Logger
	validate *validator.Validate
}

// NewService builds a member service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg, validate: validator.New()}, nil
}

func (s *service) RegisterMember(ctx context.Context, input RegisterMemberInput) (*models.Member, error) {
	member := &models.Member{
		MemberNumber: strings.TrimSpace(input.MemberNumber),
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		Phone:        trimmedOrNil(input.Phone),
		Role:         input.Role,
		Status:       enums.MemberStatusActive,
	}
	if member.Role == "" {
		member.Role = enums.MemberRoleMember
	}

	details := map[string]any{}
	if !memberNumberPattern.MatchString(member.MemberNumber) {
		details["member_number"] = "must contain only digits"
	}
	if !member.Role.IsValid() {
		details["role"] = "unknown role"
	}
	s.checkContact(member, details)
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member").WithDetails(details)
	}

	created, err := s.repo.Create(ctx, member)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "member number already registered").
				WithDetails(map[string]any{"member_number": member.MemberNumber})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
	}

	s.logg.Info(s.logg.WithMemberID(ctx, created.ID.String()), "member registered")
	return created, nil
}

func (s *service) UpdateContact(ctx context.Context, id uuid.UUID, input UpdateContactInput) (*models.Member, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		member.Name = strings.TrimSpace(*input.Name)
		updates["name"] = member.Name
	}
	if input.Email != nil {
		member.Email = strings.TrimSpace(*input.Email)
		updates["email"] = member.Email
	}
	if input.Phone != nil {
		member.Phone = trimmedOrNil(input.Phone)
		updates["phone"] = member.Phone
	}

	details := map[string]any{}
	s.checkContact(member, details)
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member").WithDetails(details)
	}

	if err := s.repo.UpdateContact(ctx, id, updates); err != nil {
		return nil, lookupError(err, id.String())
	}
	return member, nil
}

func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, id.String())
	}
	return member, nil
}

func (s *service) GetMemberByNumber(ctx context.Context, memberNumber string) (*models.Member, error) {
	memberNumber = strings.TrimSpace(memberNumber)
	if !memberNumberPattern.MatchString(memberNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member number").
			WithDetails(map[string]any{"member_number": "must contain only digits"})
	}
	member, err := s.repo.FindByNumber(ctx, memberNumber)
	if err != nil {
		return nil, lookupError(err, memberNumber)
	}
	return member, nil
}

func (s *service) ListMembers(ctx context.Context, params pagination.Params, filters MemberFilters) (*pagination.Page[models.Member], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return page, nil
}

// ChangeStatus moves a member between active, inactive and suspended.
// Existing loans keep their member reference regardless of the new status.
func (s *service) ChangeStatus(ctx context.Context, id uuid.UUID, status enums.MemberStatus) (*models.Member, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member status").
			WithDetails(map[string]any{"status": string(status)})
	}
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.Status == status {
		return member, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, lookupError(err, id.String())
	}

	ctx = s.logg.WithFields(s.logg.WithMemberID(ctx, id.String()), map[string]any{
		"from": member.Status,
		"to":   status,
	})
	s.logg.Info(ctx, "member status changed")
	member.Status = status
	return member, nil
}

func (s *service) checkContact(member *models.Member, details map[string]any) {
	if member.Name == "" {
		details["name"] = "required"
	}
	if err := s.validate.Var(member.Email, "required,email"); err != nil {
		details["email"] = "must be a valid email address"
	}
}

func lookupError(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "member not found").
			WithDetails(map[string]any{"kind": "member", "id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
