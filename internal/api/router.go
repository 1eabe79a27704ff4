package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tradeshield/escrow-backend/internal/api/handlers"
	"github.com/tradeshield/escrow-backend/internal/auth"
	"github.com/tradeshield/escrow-backend/internal/config"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/middleware"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/services"
)

type RouterDeps struct {
	Cfg           config.Config
	TM            *auth.TokenManager
	Users         *services.UserService
	Escrows       *services.EscrowService
	Disputes      *services.DisputeService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
	Banks         *services.BankService
	KYC           *services.KYCService
	APIKeys       *services.APIKeyService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(d.Cfg.RateRPS), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authH := handlers.NewAuthHandler(d.Users, d.TM)
	escrowH := handlers.NewEscrowHandler(d.Escrows)
	deliveryH := handlers.NewDeliveryHandler(d.Escrows)
	disputeH := handlers.NewDisputeHandler(d.Disputes)
	paymentH := handlers.NewPaymentHandler(d.Payments)
	notifH := handlers.NewNotificationHandler(d.Notifications)
	bankH := handlers.NewBankHandler(d.Banks)
	kycH := handlers.NewKYCHandler(d.KYC)
	apikeyH := handlers.NewAPIKeyHandler(d.APIKeys)

	authMW := middleware.NewAuthMiddleware(d.TM, d.APIKeys)

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// everything below requires a bearer token or API key
		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Get("/auth/me", authH.Me)

			r.Route("/escrow", func(r chi.Router) {
				r.Post("/create", escrowH.Create)
				r.Get("/", escrowH.List)
				r.Get("/{id}", escrowH.Get)
				r.Post("/{id}/accept", escrowH.Accept)
				r.Post("/{id}/cancel", escrowH.Cancel)
				r.Post("/{id}/confirm", escrowH.Confirm)
				r.Post("/{id}/release", escrowH.Confirm)
			})

			r.Route("/delivery", func(r chi.Router) {
				r.Post("/upload-proof", deliveryH.UploadProof)
				r.Put("/update-tracking", deliveryH.UpdateTracking)
			})

			r.Route("/disputes", func(r chi.Router) {
				r.Post("/create", disputeH.Raise)
				r.Get("/{escrowID}", disputeH.Get)
				r.Post("/{id}/respond", disputeH.Respond)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/{id}/resolve", disputeH.Resolve)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/initialize", paymentH.Initialize)
				r.Post("/verify", paymentH.Verify)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifH.List)
				r.Put("/{id}/read", notifH.MarkRead)
				r.Put("/read-all", notifH.MarkAllRead)
				r.Delete("/read/clear", notifH.ClearRead)
				r.Delete("/{id}", notifH.Delete)
				r.Get("/settings", notifH.GetSettings)
				r.Put("/settings", notifH.UpdateSettings)
			})

			r.Route("/bank", func(r chi.Router) {
				r.Get("/list", bankH.List)
				r.Post("/add", bankH.Add)
				r.Put("/primary/{id}", bankH.SetPrimary)
				r.Get("/payouts", bankH.Payouts)
				r.Delete("/{id}", bankH.Delete)
			})

			r.Route("/kyc", func(r chi.Router) {
				r.Post("/submit", kycH.Submit)
				r.Get("/status", kycH.Status)
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/pending", kycH.ListPending)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/{userID}/review", kycH.Review)
			})

			r.Route("/apikeys", func(r chi.Router) {
				r.Post("/", apikeyH.Create)
				r.Get("/", apikeyH.List)
				r.Delete("/{id}", apikeyH.Revoke)
			})
		})
	})

	return r
}
