package vouchers

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Get("/", h.ListPayments)
		r.Post("/", h.CreatePayment)
	})
	r.Route("/receipt", func(r chi.Router) {
		r.Get("/", h.ListReceipts)
		r.Post("/", h.CreateReceipt)
	})
}
