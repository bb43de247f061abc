package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
)

type bookResponse struct {
	ID              uuid.UUID `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       *string   `json:"publisher,omitempty"`
	PublicationYear *int      `json:"publication_year,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newBookResponse(b models.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		PublicationYear: b.PublicationYear,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Version:         b.Version,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type memberResponse struct {
	ID           uuid.UUID          `json:"id"`
	MemberNumber string             `json:"member_number"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Phone        *string            `json:"phone,omitempty"`
	Role         enums.MemberRole   `json:"role"`
	Status       enums.MemberStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
}

func newMemberResponse(m models.Member) memberResponse {
	return memberResponse{
		ID:           m.ID,
		MemberNumber: m.MemberNumber,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Role:         m.Role,
		Status:       m.Status,
		RegisteredAt: m.RegisteredAt,
	}
}

type loanResponse struct {
	ID             uuid.UUID        `json:"id"`
	BookID         uuid.UUID        `json:"book_id"`
	MemberID       uuid.UUID        `json:"member_id"`
	StartDate      time.Time        `json:"start_date"`
	DueDate        time.Time        `json:"due_date"`
	ReturnDate     *time.Time       `json:"return_date,omitempty"`
	Status         enums.LoanStatus `json:"status"`
	LoanPeriodDays int              `json:"loan_period_days"`
}

func newLoanResponse(l models.Loan) loanResponse {
	return loanResponse{
		ID:             l.ID,
		BookID:         l.BookID,
		MemberID:       l.MemberID,
		StartDate:      l.StartDate,
		DueDate:        l.DueDate,
		ReturnDate:     l.ReturnDate,
		Status:         l.Status,
		LoanPeriodDays: l.LoanPeriodDays,
	}
}

type overdueLoanResponse struct {
	loanResponse
	DaysOverdue int             `json:"days_overdue"`
	AccruedFine decimal.Decimal `json:"accrued_fine"`
}

type fineResponse struct {
	LoanID uuid.UUID       `json:"loan_id"`
	AsOf   time.Time       `json:"as_of"`
	Amount decimal.Decimal `json:"amount"`
}

type pageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func mapItems[S, T any](items []S, fn func(S) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
