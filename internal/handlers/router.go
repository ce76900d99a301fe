package handlers

import (
	"net/http"
	"time"

	"bankloan/internal/middleware"
	"bankloan/internal/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(h.metrics.Middleware)
	router.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		SSLRedirect:        h.cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !h.cfg.IsProduction(),
	}).Handler)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authed := middleware.Auth(h.cfg.JWTSecret, h.revoker)
	can := func(c models.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(h.roles, c)
	}

	router.Route("/auth", func(r chi.Router) {
		r.Use(httprate.Limit(h.cfg.AuthRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				respondError(w, http.StatusTooManyRequests, "too many requests")
			}),
		))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authed).Post("/refresh", h.Refresh)
		r.With(authed).Post("/logout", h.Logout)
		r.With(authed).Get("/me", h.Me)
	})

	router.Route("/profile", func(r chi.Router) {
		r.Use(authed)
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Post("/change-password", h.ChangePassword)
	})

	router.Route("/accounts", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", h.CreateAccount)
		r.Get("/", h.ListAccounts)
		r.Get("/self-check", h.SelfCheck)
		r.Get("/{number}/balance", h.GetBalance)
		r.Get("/{number}/mini-statement", h.MiniStatement)
		r.Get("/{number}/statement", h.Statement)
		r.Post("/{number}/deposit", h.Deposit)
		r.Post("/{number}/withdraw", h.Withdraw)
	})

	router.Route("/transactions", func(r chi.Router) {
		r.Use(authed)
		r.Post("/transfer", h.Transfer)
		r.Get("/history", h.History)
		r.Get("/search", h.Search)
		r.Put("/{id}/description", h.UpdateDescription)
		r.Put("/{id}/category", h.UpdateCategory)
	})

	router.Route("/loans", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", h.ApplyLoan)
		r.Get("/mine", h.MyLoans)
		r.With(can(models.CapViewAllLoans)).Get("/pending", h.PendingLoans)
		r.With(can(models.CapViewAllLoans)).Get("/", h.ListLoans)
		r.Get("/{id}", h.GetLoan)
		r.Get("/{id}/installments", h.LoanInstallments)
		r.Post("/{id}/pay-installment", h.PayInstallment)
		r.Post("/{id}/renew", h.RenewLoan)
		r.Post("/{id}/close", h.CloseLoan)
		r.With(can(models.CapReviewLoans)).Post("/{id}/approve", h.ApproveLoan)
		r.With(can(models.CapReviewLoans)).Post("/{id}/reject", h.RejectLoan)
		r.With(can(models.CapReviewLoans)).Post("/{id}/disburse", h.DisburseLoan)
	})

	router.Route("/dashboard", func(r chi.Router) {
		r.Use(authed)
		r.Get("/customer", h.CustomerDashboard)
		r.With(can(models.CapOfficerReports)).Get("/officer", h.OfficerDashboard)
		r.With(can(models.CapAdminReports)).Get("/admin", h.AdminDashboard)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authed)
		r.With(can(models.CapManageStaff)).Post("/staff", h.CreateStaff)
		r.With(can(models.CapAdminReports)).Get("/customers", h.AdminCustomers)
		r.With(can(models.CapViewAudit)).Get("/audit", h.AdminAudit)
		r.With(can(models.CapViewAudit)).Get("/reconcile", h.AdminReconcile)
	})

	router.With(middleware.QueryAuth(h.cfg.JWTSecret, h.revoker)).Get("/ws/balances", h.WSBalances)
	router.Get("/health", h.Health)
	router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	return router
}
