package controllers

import (
	"net/http"

	"github.com/wilffren/libronova/api/responses"
	"github.com/wilffren/libronova/api/validators"
	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/internal/circulation"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
	"github.com/wilffren/libronova/pkg/logger"
)

type registerBookRequest struct {
	ISBN            string  `json:"isbn" validate:"required,max=32"`
	Title           string  `json:"title" validate:"required,max=255"`
	Author          string  `json:"author" validate:"required,max=255"`
	Publisher       *string `json:"publisher,omitempty" validate:"omitempty,max=255"`
	PublicationYear *int    `json:"publication_year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	TotalCopies     int     `json:"total_copies" validate:"gte=0"`
	AvailableCopies *int    `json:"available_copies,omitempty" validate:"omitempty,gte=0"`
}

type updateBookRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Author          *string `json:"author,omitempty" validate:"omitempty,max=255"`
	Publisher       *string `json:"publisher,omitempty" validate:"omitempty,max=255"`
	PublicationYear *int    `json:"publication_year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	TotalCopies     *int    `json:"total_copies,omitempty" validate:"omitempty,gte=0"`
}

func RegisterBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := svc.RegisterBook(r.Context(), catalog.RegisterBookInput{
			ISBN:            payload.ISBN,
			Title:           payload.Title,
			Author:          payload.Author,
			Publisher:       payload.Publisher,
			PublicationYear: payload.PublicationYear,
			TotalCopies:     payload.TotalCopies,
			AvailableCopies: payload.AvailableCopies,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBookResponse(*book))
	}
}

func ListBooks(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := catalog.BookFilters{Title: validators.SanitizeString(r.URL.Query().Get("title"), 255)}
		page, err := svc.ListBooks(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse[bookResponse]{
			Items:      mapItems(page.Items, newBookResponse),
			NextCursor: page.NextCursor,
		})
	}
}

func GetBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := svc.GetBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookResponse(*book))
	}
}

func GetBookByISBN(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		isbn := validators.SanitizeString(chiParam(r, "isbn"), 32)
		if isbn == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "isbn is required"))
			return
		}
		book, err := svc.GetBookByISBN(r.Context(), isbn)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookResponse(*book))
	}
}

func UpdateBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateBookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := svc.UpdateBook(r.Context(), id, catalog.UpdateBookInput{
			Title:           payload.Title,
			Author:          payload.Author,
			Publisher:       payload.Publisher,
			PublicationYear: payload.PublicationYear,
			TotalCopies:     payload.TotalCopies,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookResponse(*book))
	}
}

func DeleteBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteBook(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AuditBook reports whether a book's counters agree with its active loans.
// A breach is a successful audit with consistent=false.
func AuditBook(svc circulation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		audit, err := svc.AuditBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, audit)
	}
}

func AuditInventory(svc circulation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.AuditInventory(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
