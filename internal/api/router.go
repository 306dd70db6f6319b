package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Cheertaboi/pos-offer-service/internal/api/handlers"
	"github.com/Cheertaboi/pos-offer-service/internal/api/middleware"
)

// Service is everything the HTTP surface needs from the offer engine.
type Service interface {
	handlers.OfferService
	handlers.SessionService
}

// NewRouter builds the HTTP router for the offer-service
func NewRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	offerHandler := handlers.NewOfferHandler(svc)
	sessionHandler := handlers.NewSessionHandler(svc)

	r.Route("/offers", func(r chi.Router) {
		r.Get("/", offerHandler.ListOffers)
		r.Post("/{offerID}/evaluate", offerHandler.EvaluateOffer)
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", sessionHandler.GetSession)
		r.Delete("/", sessionHandler.EndSession)
		r.Put("/cart", sessionHandler.SetCart)
		r.Put("/customer", sessionHandler.SetCustomer)
		r.Put("/promo-code", sessionHandler.SetPromoCode)
		r.Put("/channel", sessionHandler.SetChannel)
		r.Post("/offer", sessionHandler.SelectOffer)
		r.Delete("/offer", sessionHandler.DeselectOffer)
		r.Post("/free-item", sessionHandler.ChooseFreeItem)
		r.Post("/finalize", sessionHandler.Finalize)
	})

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Post("/offers", offerHandler.CreateOffer)
		r.Post("/catalog/refresh", offerHandler.RefreshCatalog)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
