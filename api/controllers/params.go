package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func chiParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
