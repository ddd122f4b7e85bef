package pettycash

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/funds", func(r chi.Router) {
		r.Post("/", h.handleCreateFund)
		r.Get("/{id}", h.handleGetFund)
		r.Post("/{id}/reconcile", h.handleReconcile)
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.handleCreateTransaction)
		r.Get("/{id}", h.handleGetTransaction)
		r.Post("/{id}/approve", h.handleApprove)
		r.Post("/{id}/reject", h.handleReject)
	})
	r.Route("/vouchers", func(r chi.Router) {
		r.Post("/{id}/disburse", h.handleDisburse)
	})
}
