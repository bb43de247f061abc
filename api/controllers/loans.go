package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/wilffren/libronova/api/responses"
	"github.com/wilffren/libronova/api/validators"
	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/logger"
)

const (
	defaultOverdueLimit = 100
	maxOverdueLimit     = 1000
)

type createLoanRequest struct {
	BookID   string `json:"book_id" validate:"required,uuid"`
	MemberID string `json:"member_id" validate:"required,uuid"`
	// LoanPeriodDays falls back to the configured default when omitted.
	LoanPeriodDays *int `json:"loan_period_days,omitempty"`
}

// CreateLoan checks out one copy. An omitted loan period uses defaultDays; an
// explicit value, zero included, is validated by the coordinator.
func CreateLoan(svc circulation.Service, defaultDays int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createLoanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		days := defaultDays
		if payload.LoanPeriodDays != nil {
			days = *payload.LoanPeriodDays
		}
		bookID, err := validators.ParseBodyUUID("book_id", payload.BookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		memberID, err := validators.ParseBodyUUID("member_id", payload.MemberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		loan, err := svc.CreateLoan(r.Context(), circulation.CreateLoanInput{
			BookID:         bookID,
			MemberID:       memberID,
			LoanPeriodDays: days,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newLoanResponse(*loan))
	}
}

func ReturnLoan(svc circulation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		loan, err := svc.ReturnLoan(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newLoanResponse(*loan))
	}
}

func GetLoan(svc circulation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		loan, err := svc.GetLoan(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newLoanResponse(*loan))
	}
}

func ListLoans(svc circulation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters circulation.LoanFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseLoanStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		if filters.MemberID, err = validators.ParseQueryUUID(r, "memberId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.BookID, err = validators.ParseQueryUUID(r, "bookId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListLoans(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse[loanResponse]{
			Items:      mapItems(page.Items, newLoanResponse),
			NextCursor: page.NextCursor,
		})
	}
}

// LoanFine returns the fine accrued on a loan as of ?asOf, default now.
func LoanFine(svc circulation.Service, clock func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "loanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := resolveAsOf(r, clock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := svc.CalculateFine(r.Context(), id, &asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fineResponse{LoanID: id, AsOf: asOf, Amount: amount})
	}
}

// ListOverdue returns up to ?limit active loans due before ?asOf, earliest
// due first, each with its accrued fine.
func ListOverdue(svc circulation.Service, fines circulation.FineCalculator, clock func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := resolveAsOf(r, clock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultOverdueLimit, 1, maxOverdueLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]overdueLoanResponse, 0)
		for loan, err := range svc.FindOverdue(r.Context(), &asOf) {
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, overdueLoanResponse{
				loanResponse: newLoanResponse(loan),
				DaysOverdue:  circulation.OverdueDays(loan.DueDate, asOf),
				AccruedFine:  fines.Calculate(loan, asOf),
			})
			if len(items) == limit {
				break
			}
		}
		responses.WriteSuccess(w, map[string]any{"as_of": asOf, "items": items})
	}
}

func resolveAsOf(r *http.Request, clock func() time.Time) (time.Time, error) {
	asOf, err := validators.ParseQueryTime(r, "asOf")
	if err != nil {
		return time.Time{}, err
	}
	if asOf != nil {
		return *asOf, nil
	}
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC(), nil
}
