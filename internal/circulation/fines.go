package circulation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wilffren/libronova/pkg/db/models"
)

const day = 24 * time.Hour

// FineCalculator prices overdue loans at a flat rate per whole day late.
type FineCalculator struct {
	DailyRate decimal.Decimal
}

// NewFineCalculator returns a calculator charging rate per overdue day.
func NewFineCalculator(rate decimal.Decimal) FineCalculator {
	return FineCalculator{DailyRate: rate}
}

// Calculate returns the fine accrued by loan as of asOf. Returned loans and
// loans not yet past due accrue nothing.
func (f FineCalculator) Calculate(loan models.Loan, asOf time.Time) decimal.Decimal {
	if !loan.IsActive() {
		return decimal.Zero
	}
	days := OverdueDays(loan.DueDate, asOf)
	if days <= 0 {
		return decimal.Zero
	}
	return f.DailyRate.Mul(decimal.NewFromInt(int64(days)))
}

// OverdueDays counts the whole days elapsed between due and asOf.
// Partial days are dropped; asOf at or before due yields zero.
func OverdueDays(due, asOf time.Time) int {
	if !asOf.After(due) {
		return 0
	}
	return int(asOf.Sub(due) / day)
}
