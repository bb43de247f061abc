package circulation

import (
	"time"

	"github.com/google/uuid"

	"github.com/wilffren/libronova/pkg/enums"
)

// CreateLoanInput requests a checkout of one copy for LoanPeriodDays days.
type CreateLoanInput struct {
	BookID         uuid.UUID
	MemberID       uuid.UUID
	LoanPeriodDays int
}

// LoanFilters narrows loan listings.
type LoanFilters struct {
	Status   *enums.LoanStatus
	MemberID *uuid.UUID
	BookID   *uuid.UUID
}

// OverduePosition is the keyset position of the last overdue loan read.
type OverduePosition struct {
	DueDate time.Time
	ID      uuid.UUID
}

// InventoryCount is one book's stored counters next to its live active loans.
type InventoryCount struct {
	BookID          uuid.UUID `gorm:"column:book_id" json:"book_id"`
	ISBN            string    `gorm:"column:isbn" json:"isbn"`
	TotalCopies     int       `gorm:"column:total_copies" json:"total_copies"`
	AvailableCopies int       `gorm:"column:available_copies" json:"available_copies"`
	ActiveLoans     int64     `gorm:"column:active_loans" json:"active_loans"`
}

// BookAudit is the conservation check result for one book.
type BookAudit struct {
	InventoryCount
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// Err returns the InvariantViolation for an inconsistent audit, nil otherwise.
func (a BookAudit) Err() error {
	if a.Consistent {
		return nil
	}
	return InvariantViolation(a.Detail, map[string]any{
		"book_id":          a.BookID.String(),
		"total_copies":     a.TotalCopies,
		"available_copies": a.AvailableCopies,
		"active_loans":     a.ActiveLoans,
	})
}

// InventoryAudit summarizes a full-catalog conservation check.
type InventoryAudit struct {
	BooksChecked int         `json:"books_checked"`
	Breaches     []BookAudit `json:"breaches"`
}
