package circulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

func TestEligibilityChecker(t *testing.T) {
	active := models.Member{ID: uuid.New(), Status: enums.MemberStatusActive}
	inactive := models.Member{ID: uuid.New(), Status: enums.MemberStatusInactive}
	suspended := models.Member{ID: uuid.New(), Status: enums.MemberStatusSuspended}
	stocked := models.Book{ID: uuid.New(), TotalCopies: 2, AvailableCopies: 1}
	empty := models.Book{ID: uuid.New(), TotalCopies: 2, AvailableCopies: 0}

	cases := []struct {
		name   string
		member models.Member
		book   models.Book
		ok     bool
		reason FailureReason
	}{
		{"active with stock", active, stocked, true, ReasonNone},
		{"active without stock", active, empty, false, ReasonNoStockAvailable},
		{"inactive with stock", inactive, stocked, false, ReasonMemberNotEligible},
		{"suspended with stock", suspended, stocked, false, ReasonMemberNotEligible},
		{"member checked before stock", inactive, empty, false, ReasonMemberNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := EligibilityChecker{}.CanBorrow(tc.member, tc.book)
			if ok != tc.ok || reason != tc.reason {
				t.Fatalf("CanBorrow = (%v, %q), want (%v, %q)", ok, reason, tc.ok, tc.reason)
			}
		})
	}
}

func TestEligibilityErrorCarriesContext(t *testing.T) {
	book := models.Book{ID: uuid.New(), AvailableCopies: 0}
	member := models.Member{ID: uuid.New(), Status: enums.MemberStatusInactive}

	err := pkgerrors.As(eligibilityError(ReasonNoStockAvailable, member, book))
	if err == nil || err.Code() != pkgerrors.CodeNoStockAvailable {
		t.Fatalf("unexpected error %v", err)
	}
	details := err.Details().(map[string]any)
	if details["book_id"] != book.ID.String() || details["available"] != 0 {
		t.Fatalf("unexpected details %v", details)
	}

	err = pkgerrors.As(eligibilityError(ReasonMemberNotEligible, member, book))
	if err == nil || err.Code() != pkgerrors.CodeMemberNotEligible {
		t.Fatalf("unexpected error %v", err)
	}
	if eligibilityError(ReasonNone, member, book) != nil {
		t.Fatal("expected nil error for eligible request")
	}
}

func TestFineCalculator(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	loan := models.Loan{DueDate: due, Status: enums.LoanStatusActive}
	calc := NewFineCalculator(decimal.RequireFromString("1.00"))

	cases := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"before due", due.Add(-time.Hour), "0"},
		{"exactly due", due, "0"},
		{"partial day late", due.Add(23 * time.Hour), "0"},
		{"one day late", due.Add(24 * time.Hour), "1"},
		{"six days late", due.AddDate(0, 0, 6), "6"},
		{"six and a half days late", due.Add(6*day + 12*time.Hour), "6"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Calculate(loan, tc.asOf)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("Calculate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFineIsZeroForReturnedLoan(t *testing.T) {
	returnedAt := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	loan := models.Loan{
		DueDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ReturnDate: &returnedAt,
		Status:     enums.LoanStatusReturned,
	}
	got := NewFineCalculator(decimal.NewFromInt(1)).Calculate(loan, returnedAt.AddDate(0, 1, 0))
	if !got.IsZero() {
		t.Fatalf("expected zero fine, got %s", got)
	}
}

func TestFineIsMonotonicInAsOf(t *testing.T) {
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := models.Loan{DueDate: due, Status: enums.LoanStatusActive}
	calc := NewFineCalculator(decimal.RequireFromString("0.25"))

	previous := decimal.Zero
	for step := -48; step <= 24*40; step += 5 {
		asOf := due.Add(time.Duration(step) * time.Hour)
		fine := calc.Calculate(loan, asOf)
		if fine.LessThan(previous) {
			t.Fatalf("fine decreased at %s: %s < %s", asOf, fine, previous)
		}
		if !asOf.After(due) && !fine.IsZero() {
			t.Fatalf("expected zero fine at or before due, got %s", fine)
		}
		previous = fine
	}
}

func TestEvaluateAudit(t *testing.T) {
	ok := evaluate(InventoryCount{TotalCopies: 3, AvailableCopies: 1, ActiveLoans: 2})
	if !ok.Consistent || ok.Err() != nil {
		t.Fatalf("expected consistent audit, got %+v", ok)
	}

	drift := evaluate(InventoryCount{TotalCopies: 3, AvailableCopies: 2, ActiveLoans: 2})
	if drift.Consistent {
		t.Fatal("expected conservation breach")
	}
	if !pkgerrors.IsCode(drift.Err(), pkgerrors.CodeInvariantViolation) {
		t.Fatalf("unexpected error %v", drift.Err())
	}

	overflow := evaluate(InventoryCount{TotalCopies: 1, AvailableCopies: 2})
	if overflow.Consistent || overflow.Detail == "" {
		t.Fatalf("expected bounds breach, got %+v", overflow)
	}
}

func TestTransientClassification(t *testing.T) {
	if !isTransient(ConcurrentModification("book", "1", nil)) {
		t.Fatal("concurrent modification should be transient")
	}
	if !isTransient(PersistenceUnavailable("save", nil)) {
		t.Fatal("persistence unavailable should be transient")
	}
	for _, err := range []error{
		NoStockAvailable("b", 0),
		MemberNotEligible("m", enums.MemberStatusInactive),
		InvariantViolation("broken", nil),
		LoanNotActive("l", enums.LoanStatusReturned),
	} {
		if isTransient(err) {
			t.Fatalf("%v must not be retried", err)
		}
	}
}
