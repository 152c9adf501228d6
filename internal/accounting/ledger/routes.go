package ledger

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{accountID}", h.Project)
}

// MountStatementRoutes attaches the customer statement under /customers.
func (h *Handler) MountStatementRoutes(r chi.Router) {
	r.Get("/{customerID}/statement", h.Statement)
}
