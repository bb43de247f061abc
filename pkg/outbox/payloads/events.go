package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanCreatedEvent is emitted when a copy is checked out.
type LoanCreatedEvent struct {
	LoanID          uuid.UUID `json:"loan_id"`
	BookID          uuid.UUID `json:"book_id"`
	MemberID        uuid.UUID `json:"member_id"`
	StartDate       time.Time `json:"start_date"`
	DueDate         time.Time `json:"due_date"`
	AvailableCopies int       `json:"available_copies"`
}

// LoanReturnedEvent is emitted when a copy comes back.
type LoanReturnedEvent struct {
	LoanID          uuid.UUID       `json:"loan_id"`
	BookID          uuid.UUID       `json:"book_id"`
	MemberID        uuid.UUID       `json:"member_id"`
	DueDate         time.Time       `json:"due_date"`
	ReturnDate      time.Time       `json:"return_date"`
	ReturnedLate    bool            `json:"returned_late"`
	FineAtReturn    decimal.Decimal `json:"fine_at_return"`
	AvailableCopies int             `json:"available_copies"`
}

// LoanOverdueEvent is emitted once per loan the first time a scan finds it overdue.
type LoanOverdueEvent struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	BookID      uuid.UUID       `json:"book_id"`
	MemberID    uuid.UUID       `json:"member_id"`
	DueDate     time.Time       `json:"due_date"`
	DaysOverdue int             `json:"days_overdue"`
	AccruedFine decimal.Decimal `json:"accrued_fine"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// InventoryAdjustedEvent is emitted when a catalog edit changes a book's copy counts.
type InventoryAdjustedEvent struct {
	BookID          uuid.UUID `json:"book_id"`
	PreviousTotal   int       `json:"previous_total"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	ActiveLoanCount int       `json:"active_loan_count"`
}

// AggregateKey reports the id of the aggregate the payload describes.
func (e LoanCreatedEvent) AggregateKey() uuid.UUID { return e.LoanID }

func (e LoanReturnedEvent) AggregateKey() uuid.UUID { return e.LoanID }

func (e LoanOverdueEvent) AggregateKey() uuid.UUID { return e.LoanID }

func (e InventoryAdjustedEvent) AggregateKey() uuid.UUID { return e.BookID }
