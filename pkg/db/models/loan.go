package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/enums"
)

// Loan binds one copy of a book to one member.
// Status is active exactly when ReturnDate is nil.
type Loan struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BookID         uuid.UUID        `gorm:"column:book_id;type:uuid;not null;index:ix_loans_book_status,priority:1"`
	MemberID       uuid.UUID        `gorm:"column:member_id;type:uuid;not null;index:ix_loans_member"`
	StartDate      time.Time        `gorm:"column:start_date;not null"`
	DueDate        time.Time        `gorm:"column:due_date;not null;index:ix_loans_status_due,priority:2"`
	ReturnDate     *time.Time       `gorm:"column:return_date"`
	Status         enums.LoanStatus `gorm:"column:status;type:varchar(16);not null;index:ix_loans_book_status,priority:2;index:ix_loans_status_due,priority:1"`
	LoanPeriodDays int              `gorm:"column:loan_period_days;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Loan) TableName() string { return "loans" }

func (l *Loan) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the copy is still out.
func (l Loan) IsActive() bool {
	return l.Status == enums.LoanStatusActive
}
