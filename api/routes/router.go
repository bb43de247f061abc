package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wilffren/libronova/api/controllers"
	"github.com/wilffren/libronova/api/middleware"
	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/internal/members"
	"github.com/wilffren/libronova/pkg/config"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/redis"
)

// Deps bundles everything the router hands to controllers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Catalog     catalog.Service
	Members     members.Service
	Circulation circulation.Service
	Fines       circulation.FineCalculator
	Clock       func() time.Time
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.ClientID(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, cfg.Eventing.IdempotencyTTL, logg))

		r.Route("/books", func(r chi.Router) {
			r.Post("/", controllers.RegisterBook(deps.Catalog, logg))
			r.Get("/", controllers.ListBooks(deps.Catalog, logg))
			r.Get("/isbn/{isbn}", controllers.GetBookByISBN(deps.Catalog, logg))
			r.Get("/{bookId}", controllers.GetBook(deps.Catalog, logg))
			r.Put("/{bookId}", controllers.UpdateBook(deps.Catalog, logg))
			r.Delete("/{bookId}", controllers.DeleteBook(deps.Catalog, logg))
			r.Get("/{bookId}/audit", controllers.AuditBook(deps.Circulation, logg))
		})

		r.Route("/members", func(r chi.Router) {
			r.Post("/", controllers.RegisterMember(deps.Members, logg))
			r.Get("/", controllers.ListMembers(deps.Members, logg))
			r.Get("/number/{memberNumber}", controllers.GetMemberByNumber(deps.Members, logg))
			r.Get("/{memberId}", controllers.GetMember(deps.Members, logg))
			r.Put("/{memberId}", controllers.UpdateMemberContact(deps.Members, logg))
			r.Post("/{memberId}/status", controllers.ChangeMemberStatus(deps.Members, logg))
			r.Get("/{memberId}/loans", controllers.MemberActiveLoans(deps.Circulation, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", controllers.CreateLoan(deps.Circulation, cfg.Circulation.DefaultLoanDays, logg))
			r.Get("/", controllers.ListLoans(deps.Circulation, logg))
			r.Get("/overdue", controllers.ListOverdue(deps.Circulation, deps.Fines, deps.Clock, logg))
			r.Get("/{loanId}", controllers.GetLoan(deps.Circulation, logg))
			r.Post("/{loanId}/return", controllers.ReturnLoan(deps.Circulation, logg))
			r.Get("/{loanId}/fine", controllers.LoanFine(deps.Circulation, deps.Clock, logg))
		})

		r.Get("/audit/inventory", controllers.AuditInventory(deps.Circulation, logg))
	})

	return r
}
