package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/enums"
)

// Member is a library patron. Only active members may originate loans.
type Member struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	MemberNumber string             `gorm:"column:member_number;type:varchar(32);not null;uniqueIndex:ux_members_member_number"`
	Name         string             `gorm:"column:name;type:varchar(255);not null"`
	Email        string             `gorm:"column:email;type:varchar(255);not null"`
	Phone        *string            `gorm:"column:phone;type:varchar(32)"`
	Role         enums.MemberRole   `gorm:"column:role;type:varchar(32);not null"`
	Status       enums.MemberStatus `gorm:"column:status;type:varchar(32);not null"`
	RegisteredAt time.Time          `gorm:"column:registered_at;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Member) TableName() string { return "members" }

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Role == "" {
		m.Role = enums.MemberRoleMember
	}
	if m.Status == "" {
		m.Status = enums.MemberStatusActive
	}
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now().UTC()
	}
	return nil
}

// IsActive reports whether the member may borrow.
func (m Member) IsActive() bool {
	return m.Status == enums.MemberStatusActive
}
