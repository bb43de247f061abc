package circulation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/internal/members"
	"github.com/wilffren/libronova/pkg/config"
	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/metrics"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/outbox/payloads"
	"github.com/wilffren/libronova/pkg/pagination"
)

const (
	opCreateLoan = "create_loan"
	opReturnLoan = "return_loan"

	defaultOverdueBatch = 200
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the loan lifecycle surface used by transports and jobs.
type Service interface {
	CreateLoan(ctx context.Context, input CreateLoanInput) (*models.Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	CalculateFine(ctx context.Context, loanID uuid.UUID, asOf *time.Time) (decimal.Decimal, error)
	FindOverdue(ctx context.Context, asOf *time.Time) iter.Seq2[models.Loan, error]
	GetLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	ListLoans(ctx context.Context, params pagination.Params, filters LoanFilters) (*pagination.Page[models.Loan], error)
	ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]models.Loan, error)
	AuditBook(ctx context.Context, bookID uuid.UUID) (*BookAudit, error)
	AuditInventory(ctx context.Context) (*InventoryAudit, error)
}

// CoordinatorParams groups dependencies for the loan coordinator.
type CoordinatorParams struct {
	Config  config.CirculationConfig
	Tx      db.TxRunner
	Books   catalog.Repository
	Members members.Repository
	Loans   LoanRepository
	Outbox  outboxPublisher
	Metrics *metrics.CirculationMetrics
	Logger  *logger.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// OverdueBatch is the page size FindOverdue reads per query.
	OverdueBatch int
}

// Coordinator owns every loan state transition. Each transition updates the
// book row and the loan row in one transaction, guarded by the book's version.
type Coordinator struct {
	cfg          config.CirculationConfig
	tx           db.TxRunner
	books        catalog.Repository
	members      members.Repository
	loans        LoanRepository
	outbox       outboxPublisher
	metrics      *metrics.CirculationMetrics
	logg         *logger.Logger
	clock        func() time.Time
	overdueBatch int
	eligibility  EligibilityChecker
	fines        FineCalculator
}

var _ Service = (*Coordinator)(nil)

// NewCoordinator validates dependencies and fills policy defaults.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("member repository required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loan repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}

	cfg := params.Config
	if cfg.MaxLoanDays < 1 {
		cfg.MaxLoanDays = 60
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	batch := params.OverdueBatch
	if batch <= 0 {
		batch = defaultOverdueBatch
	}

	return &Coordinator{
		cfg:          cfg,
		tx:           params.Tx,
		books:        params.Books,
		members:      params.Members,
		loans:        params.Loans,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         logg,
		clock:        clock,
		overdueBatch: batch,
		fines:        NewFineCalculator(cfg.DailyFineRate),
	}, nil
}

// CreateLoan checks out one copy of a book to a member.
func (c *Coordinator) CreateLoan(ctx context.Context, input CreateLoanInput) (*models.Loan, error) {
	days := input.LoanPeriodDays
	if days < 1 || days > c.cfg.MaxLoanDays {
		err := InvalidLoanPeriod(days, 1, c.cfg.MaxLoanDays)
		c.metrics.Observe(opCreateLoan, metrics.OutcomeRejected, 0)
		return nil, err
	}
	bookID := input.BookID.String()
	memberID := input.MemberID.String()

	var created *models.Loan
	err := c.runAtomic(ctx, opCreateLoan, func(ctx context.Context, tx *gorm.DB) error {
		books := c.books.WithTx(tx)
		book, err := books.FindByID(ctx, input.BookID)
		if err != nil {
			return persistenceError("load book", KindBook, bookID, err)
		}
		member, err := c.members.WithTx(tx).FindByID(ctx, input.MemberID)
		if err != nil {
			return persistenceError("load member", KindMember, memberID, err)
		}
		if err := checkCopyBounds(book); err != nil {
			return err
		}
		if ok, reason := c.eligibility.CanBorrow(*member, *book); !ok {
			return eligibilityError(reason, *member, *book)
		}

		now := c.now()
		book.AvailableCopies--
		if err := books.Save(ctx, book); err != nil {
			return persistenceError("save book", KindBook, bookID, err)
		}

		loan := &models.Loan{
			BookID:         book.ID,
			MemberID:       member.ID,
			StartDate:      now,
			DueDate:        now.AddDate(0, 0, days),
			Status:         enums.LoanStatusActive,
			LoanPeriodDays: days,
		}
		if _, err := c.loans.WithTx(tx).Create(ctx, loan); err != nil {
			return persistenceError("insert loan", KindLoan, loan.ID.String(), err)
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         &outbox.ActorRef{MemberID: member.ID, Role: string(member.Role)},
			OccurredAt:    now,
			Data: payloads.LoanCreatedEvent{
				LoanID:          loan.ID,
				BookID:          book.ID,
				MemberID:        member.ID,
				StartDate:       loan.StartDate,
				DueDate:         loan.DueDate,
				AvailableCopies: book.AvailableCopies,
			},
		}
		if err := c.outbox.Emit(ctx, tx, event); err != nil {
			return PersistenceUnavailable("emit loan created", err)
		}
		created = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logg.WithLoanRefs(ctx, logger.LoanRefs{
		LoanID:   created.ID.String(),
		BookID:   bookID,
		MemberID: memberID,
	}), "loan created")
	return created, nil
}

// ReturnLoan closes an active loan and puts its copy back on the shelf.
func (c *Coordinator) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	id := loanID.String()

	var returned *models.Loan
	err := c.runAtomic(ctx, opReturnLoan, func(ctx context.Context, tx *gorm.DB) error {
		loans := c.loans.WithTx(tx)
		loan, err := loans.FindByID(ctx, loanID)
		if err != nil {
			return persistenceError("load loan", KindLoan, id, err)
		}
		if !loan.IsActive() {
			return LoanNotActive(id, loan.Status)
		}

		books := c.books.WithTx(tx)
		book, err := books.FindByID(ctx, loan.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return InvariantViolation("active loan references a missing book", map[string]any{
					"loan_id": id,
					"book_id": loan.BookID.String(),
				})
			}
			return persistenceError("load book", KindBook, loan.BookID.String(), err)
		}
		if err := checkCopyBounds(book); err != nil {
			return err
		}
		if book.AvailableCopies+1 > book.TotalCopies {
			return InvariantViolation("return would exceed total copies", map[string]any{
				"loan_id":          id,
				"book_id":          book.ID.String(),
				"total_copies":     book.TotalCopies,
				"available_copies": book.AvailableCopies,
			})
		}

		returnedAt := c.now()
		if returnedAt.Before(loan.StartDate) {
			returnedAt = loan.StartDate
		}
		fine := c.fines.Calculate(*loan, returnedAt)

		if err := loans.MarkReturned(ctx, loan.ID, returnedAt); err != nil {
			return persistenceError("mark returned", KindLoan, id, err)
		}
		book.AvailableCopies++
		if err := books.Save(ctx, book); err != nil {
			return persistenceError("save book", KindBook, book.ID.String(), err)
		}

		loan.Status = enums.LoanStatusReturned
		loan.ReturnDate = &returnedAt

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			OccurredAt:    returnedAt,
			Data: payloads.LoanReturnedEvent{
				LoanID:          loan.ID,
				BookID:          loan.BookID,
				MemberID:        loan.MemberID,
				DueDate:         loan.DueDate,
				ReturnDate:      returnedAt,
				ReturnedLate:    returnedAt.After(loan.DueDate),
				FineAtReturn:    fine,
				AvailableCopies: book.AvailableCopies,
			},
		}
		if err := c.outbox.Emit(ctx, tx, event); err != nil {
			return PersistenceUnavailable("emit loan returned", err)
		}
		returned = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logg.WithLoanRefs(ctx, logger.LoanRefs{
		LoanID:   id,
		BookID:   returned.BookID.String(),
		MemberID: returned.MemberID.String(),
	}), "loan returned")
	return returned, nil
}

// runAtomic executes fn in a transaction bounded by the operation timeout and
// reruns it with exponential backoff while it fails transiently.
func (c *Coordinator) runAtomic(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	started := time.Now()
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewExponential(c.cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.IncRetry(op)
		}

		opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
		defer cancel()

		err := c.tx.WithTx(opCtx, func(tx *gorm.DB) error {
			return fn(opCtx, tx)
		})
		if err == nil {
			return nil
		}
		err = persistenceError("transaction", op, "", err)
		if !isTransient(err) {
			return err
		}

		logCtx := c.logg.WithFields(ctx, map[string]any{
			"operation": op,
			"attempt":   attempt,
			"error":     err.Error(),
		})
		c.logg.Warn(logCtx, "transient failure, retrying")
		return retry.RetryableError(err)
	})
	if err != nil && pkgerrors.As(err) == nil {
		err = PersistenceUnavailable(op, err)
	}

	c.metrics.Observe(op, outcomeOf(err), time.Since(started))
	return err
}

// CalculateFine prices a loan as of asOf, defaulting to now.
func (c *Coordinator) CalculateFine(ctx context.Context, loanID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	loan, err := c.loans.FindByID(ctx, loanID)
	if err != nil {
		return decimal.Zero, persistenceError("load loan", KindLoan, loanID.String(), err)
	}
	return c.fines.Calculate(*loan, c.resolveAsOf(asOf)), nil
}

// FindOverdue yields every active loan due before asOf, earliest due first.
// Each range over the returned sequence queries storage afresh, reading in
// keyset pages so no connection is held between yields.
func (c *Coordinator) FindOverdue(ctx context.Context, asOf *time.Time) iter.Seq2[models.Loan, error] {
	cutoff := c.resolveAsOf(asOf)
	return func(yield func(models.Loan, error) bool) {
		var after *OverduePosition
		for {
			page, err := c.loans.OverduePage(ctx, cutoff, after, c.overdueBatch)
			if err != nil {
				yield(models.Loan{}, persistenceError("scan overdue", KindLoan, "", err))
				return
			}
			for _, loan := range page {
				if !yield(loan, nil) {
					return
				}
			}
			if len(page) < c.overdueBatch {
				return
			}
			last := page[len(page)-1]
			after = &OverduePosition{DueDate: last.DueDate, ID: last.ID}
		}
	}
}

func (c *Coordinator) GetLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := c.loans.FindByID(ctx, loanID)
	if err != nil {
		return nil, persistenceError("load loan", KindLoan, loanID.String(), err)
	}
	return loan, nil
}

func (c *Coordinator) ListLoans(ctx context.Context, params pagination.Params, filters LoanFilters) (*pagination.Page[models.Loan], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	} else if cursor != nil {
		if _, err := cursor.Time(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}
	page, err := c.loans.List(ctx, params, filters)
	if err != nil {
		return nil, PersistenceUnavailable("list loans", err)
	}
	return page, nil
}

func (c *Coordinator) ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]models.Loan, error) {
	if _, err := c.members.FindByID(ctx, memberID); err != nil {
		return nil, persistenceError("load member", KindMember, memberID.String(), err)
	}
	loans, err := c.loans.ListActiveByMember(ctx, memberID)
	if err != nil {
		return nil, PersistenceUnavailable("list member loans", err)
	}
	return loans, nil
}

func (c *Coordinator) now() time.Time {
	return c.clock().UTC().Truncate(time.Microsecond)
}

func (c *Coordinator) resolveAsOf(asOf *time.Time) time.Time {
	if asOf == nil || asOf.IsZero() {
		return c.now()
	}
	return asOf.UTC()
}

func checkCopyBounds(book *models.Book) error {
	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		return InvariantViolation("available copies outside [0, total]", map[string]any{
			"book_id":          book.ID.String(),
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
		})
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeConcurrentModification:
		return metrics.OutcomeConflict
	case pkgerrors.CodeNotFound,
		pkgerrors.CodeMemberNotEligible,
		pkgerrors.CodeNoStockAvailable,
		pkgerrors.CodeInvalidLoanPeriod,
		pkgerrors.CodeLoanNotActive,
		pkgerrors.CodeValidation:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
