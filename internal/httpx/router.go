package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)
		r.Post("/items", handler.AddItem)
		r.Patch("/items/{uid}", handler.SetQuantity)
		r.Delete("/items/{uid}", handler.RemoveItem)
		r.Post("/cancel", handler.CancelOrder)
	})

	r.Post("/shipping/estimate", handler.EstimateShipping)

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/prepare", handler.PrepareCheckout)
		r.Post("/confirm", handler.ConfirmCheckout)
	})

	r.Get("/receipts/latest", handler.LatestReceipt)

	return r
}
