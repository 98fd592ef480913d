package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yonatanw/ledgerscope/internal/http/analytics"
	"github.com/yonatanw/ledgerscope/internal/http/auth"
	"github.com/yonatanw/ledgerscope/internal/http/category"
	"github.com/yonatanw/ledgerscope/internal/http/scrape"
	"github.com/yonatanw/ledgerscope/internal/http/transaction"
)

func New(
	jwtSecret string,
	scrapeV1 *scrape.Handler,
	transactionsV1 *transaction.Handler,
	categoriesV1 *category.Handler,
	analyticsV1 *analytics.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/scrape", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			scrapeV1.Routes(r)
		})

		r.Route("/transactions", transactionsV1.Routes)

		r.Route("/categories", func(r chi.Router) {
			categoriesV1.Routes(r)
		})

		r.Route("/analytics", analyticsV1.Routes)
	})

	return router
}
