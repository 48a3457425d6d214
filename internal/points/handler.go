package points

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/smartrewards/pkg/middleware"
	"github.com/fkhayef/smartrewards/pkg/response"
)

// Handler handles HTTP requests for point balance operations
type Handler struct {
	service *Service
}

// NewHandler creates a new point handler with service dependency injected
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for point endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireKind(middleware.ActorCustomer))

	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)

	return r
}

// Balance handles GET /points/balance
// @Summary      Get my point balance
// @Tags         points
// @Produce      json
// @Success      200 {object} response.APIResponse{data=BalanceResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /points/balance [get]
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())

	balance, err := h.service.Balance(r.Context(), actor.ID)
	if err != nil {
		response.FromError(w, err, "Failed to get balance")
		return
	}

	response.JSON(w, http.StatusOK, &BalanceResponse{CustomerID: actor.ID, Points: balance})
}

// Transactions handles GET /points/transactions
// @Summary      List my point transactions
// @Description  Get a paginated list of ledger entries, newest first
// @Tags         points
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]EntryResponse}
// @Router       /points/transactions [get]
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	entries, total, err := h.service.History(r.Context(), actor.ID, page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list transactions")
		return
	}

	entryResponses := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		entryResponses[i] = e.ToResponse()
	}

	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}

	response.JSONWithMeta(w, http.StatusOK, entryResponses, meta)
}
