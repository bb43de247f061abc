package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/outbox/payloads"
	"github.com/wilffren/libronova/pkg/pagination"
)

var isbnPattern = regexp.MustCompile(`^[0-9][0-9-]{8,15}[0-9Xx]$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes catalog maintenance. Copy counts change here only through
// UpdateBook; loans move them through the circulation coordinator.
type Service interface {
	RegisterBook(ctx context.Context, input RegisterBookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*pagination.Page[models.Book], error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   logg,
	}, nil
}

func (s *service) RegisterBook(ctx context.Context, input RegisterBookInput) (*models.Book, error) {
	book := &models.Book{
		ISBN:            strings.TrimSpace(input.ISBN),
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		Publisher:       trimmedOrNil(input.Publisher),
		PublicationYear: input.PublicationYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
	}
	if input.AvailableCopies != nil {
		book.AvailableCopies = *input.AvailableCopies
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, book)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "isbn already registered").
				WithDetails(map[string]any{"isbn": book.ISBN})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}

	s.logg.Info(s.logg.WithBookID(ctx, created.ID.String()), "book registered")
	return created, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	var updated *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, id.String())
		}

		previousTotal := book.TotalCopies
		if input.Title != nil {
			book.Title = strings.TrimSpace(*input.Title)
		}
		if input.Author != nil {
			book.Author = strings.TrimSpace(*input.Author)
		}
		if input.Publisher != nil {
			book.Publisher = trimmedOrNil(input.Publisher)
		}
		if input.PublicationYear != nil {
			book.PublicationYear = input.PublicationYear
		}

		var active int64
		if input.TotalCopies != nil && *input.TotalCopies != previousTotal {
			active, err = repo.CountActiveLoans(ctx, book.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active loans")
			}
			if int64(*input.TotalCopies) < active {
				return pkgerrors.New(pkgerrors.CodeConflict, "total copies below active loans").
					WithDetails(map[string]any{
						"book_id":      book.ID.String(),
						"total_copies": *input.TotalCopies,
						"active_loans": active,
					})
			}
			book.TotalCopies = *input.TotalCopies
			book.AvailableCopies = book.TotalCopies - int(active)
		}
		if err := validateBook(book); err != nil {
			return err
		}

		if err := repo.Save(ctx, book); err != nil {
			if errors.Is(err, db.ErrStaleVersion) {
				return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "book changed concurrently").
					WithDetails(map[string]any{"entity": "book", "id": book.ID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save book")
		}

		if book.TotalCopies != previousTotal {
			event := outbox.DomainEvent{
				EventType:     enums.EventInventoryAdjusted,
				AggregateType: enums.AggregateBook,
				AggregateID:   book.ID,
				Data: payloads.InventoryAdjustedEvent{
					BookID:          book.ID,
					PreviousTotal:   previousTotal,
					TotalCopies:     book.TotalCopies,
					AvailableCopies: book.AvailableCopies,
					ActiveLoanCount: int(active),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory adjusted")
			}
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, id.String())
	}
	return book, nil
}

func (s *service) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "isbn required")
	}
	book, err := s.repo.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, lookupError(err, isbn)
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context, params pagination.Params, filters BookFilters) (*pagination.Page[models.Book], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return page, nil
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return lookupError(err, id.String())
		}
		loans, err := repo.CountLoans(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count loans")
		}
		if loans > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "book is referenced by loans").
				WithDetails(map[string]any{"book_id": id.String(), "loans": loans})
		}
		if err := repo.Delete(ctx, id); err != nil {
			return lookupError(err, id.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithBookID(ctx, id.String()), "book deleted")
	return nil
}

func validateBook(book *models.Book) error {
	details := map[string]any{}
	if book.ISBN == "" {
		details["isbn"] = "required"
	} else if !isbnPattern.MatchString(book.ISBN) {
		details["isbn"] = "must be 10 to 17 digits or hyphens"
	}
	if book.Title == "" {
		details["title"] = "required"
	}
	if book.Author == "" {
		details["author"] = "required"
	}
	if book.TotalCopies < 1 {
		details["total_copies"] = "must be at least 1"
	}
	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		details["available_copies"] = "must be between 0 and total_copies"
	}
	if book.PublicationYear != nil && *book.PublicationYear < 0 {
		details["publication_year"] = "must not be negative"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid book").WithDetails(details)
	}
	return nil
}

func lookupError(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book not found").
			WithDetails(map[string]any{"kind": "book", "id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
