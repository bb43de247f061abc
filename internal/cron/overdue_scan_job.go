package cron

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/metrics"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/outbox/payloads"
)

const defaultOverdueNoticeBatch = 500

// OverdueScanJobParams configure the overdue loan sweep.
type OverdueScanJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Loans   overdueSource
	Outbox  overdueNotifier
	Fines   circulation.FineCalculator
	Metrics *metrics.CirculationMetrics
	// NoticeBatch caps the overdue notices written per run. Loans over the
	// cap are still counted and picked up on the next run.
	NoticeBatch int
}

type overdueSource interface {
	FindOverdue(ctx context.Context, asOf *time.Time) iter.Seq2[models.Loan, error]
}

type overdueNotifier interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

func NewOverdueScanJob(params OverdueScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("overdue loan source required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.NoticeBatch
	if batch <= 0 {
		batch = defaultOverdueNoticeBatch
	}
	return &overdueScanJob{
		logg:    params.Logger,
		db:      params.DB,
		loans:   params.Loans,
		outbox:  params.Outbox,
		fines:   params.Fines,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type overdueScanJob struct {
	logg    *logger.Logger
	db      txRunner
	loans   overdueSource
	outbox  overdueNotifier
	fines   circulation.FineCalculator
	metrics *metrics.CirculationMetrics
	batch   int
	now     func() time.Time
}

func (j *overdueScanJob) Name() string { return "overdue-scan" }

// Run walks every overdue loan, writes one loan_overdue notice per loan and
// publishes the overdue gauge. Failed notices do not stop the sweep.
func (j *overdueScanJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	var (
		errs    error
		overdue int
		emitted int
		accrued = decimal.Zero
	)
	for loan, err := range j.loans.FindOverdue(ctx, &asOf) {
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scan overdue loans: %w", err))
			break
		}
		overdue++
		fine := j.fines.Calculate(loan, asOf)
		accrued = accrued.Add(fine)
		if emitted >= j.batch {
			continue
		}
		created, err := j.notify(ctx, loan, asOf, fine)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify loan %s: %w", loan.ID, err))
			continue
		}
		if created {
			emitted++
		}
	}
	if errs == nil {
		j.metrics.SetOverdue(overdue)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"as_of":          asOf,
		"overdue_loans":  overdue,
		"notices_queued": emitted,
		"accrued_fines":  accrued.StringFixed(2),
	}), "overdue scan complete")
	return errs
}

func (j *overdueScanJob) notify(ctx context.Context, loan models.Loan, asOf time.Time, fine decimal.Decimal) (bool, error) {
	var created bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanOverdue,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			OccurredAt:    asOf,
			Data: payloads.LoanOverdueEvent{
				LoanID:      loan.ID,
				BookID:      loan.BookID,
				MemberID:    loan.MemberID,
				DueDate:     loan.DueDate,
				DaysOverdue: circulation.OverdueDays(loan.DueDate, asOf),
				AccruedFine: fine,
				DetectedAt:  asOf,
			},
		})
		return err
	})
	return created, err
}
