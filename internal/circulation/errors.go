package circulation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

// Entity kinds reported in EntityNotFound details.
const (
	KindBook   = "book"
	KindMember = "member"
	KindLoan   = "loan"
)

// EntityNotFound reports a lookup miss for kind/id.
func EntityNotFound(kind, id string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, kind+" not found").
		WithDetails(map[string]any{"kind": kind, "id": id})
}

// MemberNotEligible reports a borrow attempt by a member who is not active.
func MemberNotEligible(memberID string, status enums.MemberStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeMemberNotEligible, "member is not active").
		WithDetails(map[string]any{"member_id": memberID, "status": string(status)})
}

// NoStockAvailable reports a borrow attempt against a book with no free copy.
func NoStockAvailable(bookID string, available int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNoStockAvailable, "no copies available").
		WithDetails(map[string]any{"book_id": bookID, "available": available})
}

// InvalidLoanPeriod reports a loan period outside [min, max].
func InvalidLoanPeriod(value, min, max int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidLoanPeriod, "loan period out of range").
		WithDetails(map[string]any{"value": value, "min": min, "max": max})
}

// LoanNotActive reports a return attempt on a loan that is already closed.
func LoanNotActive(loanID string, status enums.LoanStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeLoanNotActive, "loan is not active").
		WithDetails(map[string]any{"loan_id": loanID, "status": string(status)})
}

// InvariantViolation signals stored data that breaks the inventory rules.
// It is never retried and never corrected automatically.
func InvariantViolation(detail string, counters map[string]any) *pkgerrors.Error {
	details := map[string]any{"detail": detail}
	for k, v := range counters {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeInvariantViolation, detail).WithDetails(details)
}

// PersistenceUnavailable wraps a storage failure or timeout during step.
func PersistenceUnavailable(step string, err error) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persistence unavailable").
		WithDetails(map[string]any{"step": step})
}

// ConcurrentModification reports a lost optimistic-lock race on entity/id.
func ConcurrentModification(entity, id string, err error) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "concurrent modification").
		WithDetails(map[string]any{"entity": entity, "id": id})
}

// persistenceError maps a raw storage error from step into the taxonomy.
// Typed errors pass through untouched.
func persistenceError(step, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return EntityNotFound(entity, id)
	case db.IsSerializationFailure(err):
		return ConcurrentModification(entity, id, err)
	default:
		return PersistenceUnavailable(step, err)
	}
}

// isTransient reports whether a whole atomic unit may be rerun after err.
func isTransient(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification) ||
		pkgerrors.IsCode(err, pkgerrors.CodeDependency)
}
