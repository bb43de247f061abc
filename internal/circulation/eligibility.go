package circulation

import "github.com/wilffren/libronova/pkg/db/models"

// FailureReason names why a borrow request was refused.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonMemberNotEligible FailureReason = "member_not_eligible"
	ReasonNoStockAvailable  FailureReason = "no_stock_available"
)

// EligibilityChecker decides whether a member may take a copy of a book.
// Member status is checked before stock.
type EligibilityChecker struct{}

// CanBorrow reports whether member may borrow book right now.
func (EligibilityChecker) CanBorrow(member models.Member, book models.Book) (bool, FailureReason) {
	if !member.IsActive() {
		return false, ReasonMemberNotEligible
	}
	if book.AvailableCopies <= 0 {
		return false, ReasonNoStockAvailable
	}
	return true, ReasonNone
}

func eligibilityError(reason FailureReason, member models.Member, book models.Book) error {
	switch reason {
	case ReasonMemberNotEligible:
		return MemberNotEligible(member.ID.String(), member.Status)
	case ReasonNoStockAvailable:
		return NoStockAvailable(book.ID.String(), book.AvailableCopies)
	default:
		return nil
	}
}
