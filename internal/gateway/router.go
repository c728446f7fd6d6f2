package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func SetupRoutes(r chi.Router, h *Handler) chi.Router {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/auth", func(pr chi.Router) {
		pr.Post("/otp", h.SendOTP)
		pr.Post("/signup", h.Signup)
		pr.Post("/login", h.Login)
		pr.Post("/logout", h.Logout)
	})

	r.Route("/me", func(pr chi.Router) {
		pr.Get("/", h.Me)
		pr.Put("/", h.UpdateProfile)
		pr.Post("/wallets", h.AddWallet)
		pr.Delete("/wallets/{walletID}", h.RemoveWallet)
	})

	r.Route("/deals", func(pr chi.Router) {
		pr.Get("/", h.ListDeals)
		pr.Post("/refresh", h.RefreshDeals)
		pr.Get("/requests", h.ListRequests)
		pr.Post("/{dealID}/accept", h.AcceptDeal)
		pr.Post("/{dealID}/decline", h.DeclineDeal)
		pr.Post("/{dealID}/cancel", h.CancelDeal)
		pr.Delete("/{dealID}", h.DeleteDeal)
	})

	r.Route("/wizard", func(pr chi.Router) {
		pr.Get("/draft", h.GetDraft)
		pr.Put("/draft", h.PutDraft)
		pr.Post("/next", h.NextStep)
		pr.Post("/back", h.BackStep)
		pr.Post("/files", h.AttachFile)
		pr.Delete("/files/{publicID}", h.RemoveFile)
		pr.Post("/images", h.AttachImage)
		pr.Delete("/images/{publicID}", h.RemoveImage)
		pr.Post("/submit", h.SubmitDraft)
		pr.Post("/confirm", h.ConfirmDraft)
	})

	r.Route("/payment", func(pr chi.Router) {
		pr.Get("/balances", h.WalletBalances)
		pr.Post("/pay", h.Pay)
	})

	return r
}
