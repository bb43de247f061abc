package catalog_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/db/dbtest"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/pagination"
)

type fixture struct {
	client *db.Client
	repo   catalog.Repository
	outbox *outbox.Repository
	svc    catalog.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := catalog.NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	svc, err := catalog.NewService(catalog.ServiceParams{
		Repo:   repo,
		Tx:     client,
		Outbox: outbox.NewService(outboxRepo, nil),
	})
	require.NoError(t, err)
	return fixture{client: client, repo: repo, outbox: outboxRepo, svc: svc}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestRegisterBookDefaultsAvailableToTotal(t *testing.T) {
	f := newFixture(t)

	book, err := f.svc.RegisterBook(context.Background(), catalog.RegisterBookInput{
		ISBN:        "978-0134190440",
		Title:       "The Go Programming Language",
		Author:      "Donovan",
		TotalCopies: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 3, book.AvailableCopies)
	require.Equal(t, int64(1), book.Version)
}

func TestRegisterBookValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		input catalog.RegisterBookInput
		field string
	}{
		{"missing isbn", catalog.RegisterBookInput{Title: "T", Author: "A", TotalCopies: 1}, "isbn"},
		{"malformed isbn", catalog.RegisterBookInput{ISBN: "abc", Title: "T", Author: "A", TotalCopies: 1}, "isbn"},
		{"missing title", catalog.RegisterBookInput{ISBN: "0134190440", Author: "A", TotalCopies: 1}, "title"},
		{"zero copies", catalog.RegisterBookInput{ISBN: "0134190440", Title: "T", Author: "A"}, "total_copies"},
		{"available above total", catalog.RegisterBookInput{ISBN: "0134190440", Title: "T", Author: "A", TotalCopies: 1, AvailableCopies: intPtr(2)}, "available_copies"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RegisterBook(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeValidation, typed.Code())
			require.Contains(t, typed.Details(), tc.field)
		})
	}
}

func TestRegisterBookDuplicateISBN(t *testing.T) {
	f := newFixture(t)
	input := catalog.RegisterBookInput{ISBN: "0134190440", Title: "T", Author: "A", TotalCopies: 1}

	_, err := f.svc.RegisterBook(context.Background(), input)
	require.NoError(t, err)
	_, err = f.svc.RegisterBook(context.Background(), input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestUpdateBookRecomputesAvailableFromActiveLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := seedBook(t, f, 3)
	seedLoan(t, f, book, enums.LoanStatusActive)
	book.AvailableCopies = 2
	require.NoError(t, f.repo.Save(ctx, book))

	updated, err := f.svc.UpdateBook(ctx, book.ID, catalog.UpdateBookInput{
		TotalCopies: intPtr(5),
		Publisher:   strPtr("  Addison-Wesley "),
	})
	require.NoError(t, err)
	require.Equal(t, 5, updated.TotalCopies)
	require.Equal(t, 4, updated.AvailableCopies)
	require.Equal(t, "Addison-Wesley", *updated.Publisher)

	events, err := f.outbox.ListByAggregate(ctx, enums.AggregateBook, book.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)
}

func TestUpdateBookRejectsTotalBelowActiveLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := seedBook(t, f, 2)
	seedLoan(t, f, book, enums.LoanStatusActive)
	seedLoan(t, f, book, enums.LoanStatusActive)

	_, err := f.svc.UpdateBook(ctx, book.ID, catalog.UpdateBookInput{TotalCopies: intPtr(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	reloaded, err := f.repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.TotalCopies)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := seedBook(t, f, 1)

	stale := *book
	book.Title = "First writer"
	require.NoError(t, f.repo.Save(ctx, book))
	require.Equal(t, int64(2), book.Version)

	stale.Title = "Second writer"
	require.ErrorIs(t, f.repo.Save(ctx, &stale), db.ErrStaleVersion)
}

func TestGetBookNotFoundCarriesKind(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	_, err := f.svc.GetBook(context.Background(), id)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	require.Equal(t, map[string]any{"kind": "book", "id": id.String()}, typed.Details())
}

func TestListBooksFiltersByTitleAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, title := range []string{"Go in Action", "Learning Go", "Rust Basics", "go patterns"} {
		_, err := f.svc.RegisterBook(ctx, catalog.RegisterBookInput{
			ISBN:        "97800000000" + string(rune('0'+i)),
			Title:       title,
			Author:      "Author",
			TotalCopies: 1,
		})
		require.NoError(t, err)
	}

	first, err := f.svc.ListBooks(ctx, pagination.Params{Limit: 2}, catalog.BookFilters{Title: "GO"})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListBooks(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor}, catalog.BookFilters{Title: "go"})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	_, err = f.svc.ListBooks(ctx, pagination.Params{Cursor: "%%%"}, catalog.BookFilters{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteBookRefusedWhileLoansReferenceIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := seedBook(t, f, 1)
	seedLoan(t, f, book, enums.LoanStatusReturned)

	err := f.svc.DeleteBook(ctx, book.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	free := seedBook(t, f, 1)
	require.NoError(t, f.svc.DeleteBook(ctx, free.ID))
	_, err = f.svc.GetBook(ctx, free.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

var isbnSeq atomic.Int64

// nextISBN returns a unique ISBN-13 shaped key that passes book validation.
func nextISBN() string {
	return fmt.Sprintf("978%010d", isbnSeq.Add(1))
}

func seedBook(t *testing.T, f fixture, copies int) *models.Book {
	t.Helper()
	book, err := f.repo.Create(context.Background(), &models.Book{
		ISBN:            nextISBN(),
		Title:           "Seeded",
		Author:          "Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
	})
	require.NoError(t, err)
	return book
}

func seedLoan(t *testing.T, f fixture, book *models.Book, status enums.LoanStatus) {
	t.Helper()
	member := &models.Member{MemberNumber: uuid.NewString()[:8], Name: "Reader", Email: "reader@example.com"}
	require.NoError(t, f.client.DB().Create(member).Error)

	start := time.Now().UTC().Add(-48 * time.Hour)
	loan := &models.Loan{
		BookID:         book.ID,
		MemberID:       member.ID,
		StartDate:      start,
		DueDate:        start.AddDate(0, 0, 14),
		Status:         status,
		LoanPeriodDays: 14,
	}
	if status == enums.LoanStatusReturned {
		returned := start.Add(24 * time.Hour)
		loan.ReturnDate = &returned
	}
	require.NoError(t, f.client.DB().Create(loan).Error)
}
