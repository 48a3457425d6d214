package mukando

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/smartrewards/pkg/middleware"
	"github.com/fkhayef/smartrewards/pkg/response"
)

// Handler handles HTTP requests for savings group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new savings group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for customer-facing group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/contributions", h.ListContributions)
	r.Get("/{id}/payouts", h.ListPayouts)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireKind(middleware.ActorCustomer))

		r.Post("/", h.Create)
		r.Get("/mine", h.ListMine)
		r.Get("/available", h.ListAvailable)
		r.Post("/{id}/join", h.Join)
		r.Post("/{id}/contributions", h.Contribute)
	})

	return r
}

// BusinessRoutes returns the router for the business approval endpoints
func (h *Handler) BusinessRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireKind(middleware.ActorBusiness))

	r.Get("/", h.ListForBusiness)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/decline", h.Decline)

	return r
}

// AdminRoutes returns the router for operator endpoints
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/payouts/sweep", h.RunSweep)
	r.Post("/groups/{id}/distribute", h.Distribute)

	return r
}

func groupID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// visibleGroup loads the group named in the path. Businesses may only read
// groups they host. It writes the error response itself and reports false.
func (h *Handler) visibleGroup(w http.ResponseWriter, r *http.Request, action string) (*Group, []*Membership, bool) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return nil, nil, false
	}

	group, members, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to "+action)
		return nil, nil, false
	}

	actor, _ := middleware.GetActor(r.Context())
	if actor.Kind == middleware.ActorBusiness && actor.ID != group.BusinessID {
		response.FromError(w, ErrNotGroupBusiness, "Failed to "+action)
		return nil, nil, false
	}

	return group, members, true
}

// Create handles POST /groups
// @Summary      Request a savings group
// @Description  Create a Mukando group at a business; it waits for the business to approve it
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.CreateGroupRequest(r.Context(), actor.ID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse())
}

// GetByID handles GET /groups/{id}
// @Summary      Get savings group
// @Description  Get a group with its members in payout order
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	group, members, ok := h.visibleGroup(w, r, "get group")
	if !ok {
		return
	}

	resp := group.ToResponse()
	count := len(members)
	resp.MemberCount = &count
	resp.Members = make([]*MemberResponse, len(members))
	for i, m := range members {
		resp.Members[i] = m.ToResponse()
	}
	if group.Status == StatusApproved {
		if next, ok := h.service.NextPayoutAt(group); ok {
			resp.NextPayoutAt = formatTime(&next)
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// ListMine handles GET /groups/mine
// @Summary      List my groups
// @Description  Groups the caller created or joined, newest first
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups/mine [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())

	groups, err := h.service.ListMyGroups(r.Context(), actor.ID)
	if err != nil {
		response.FromError(w, err, "Failed to list groups")
		return
	}

	response.JSON(w, http.StatusOK, summariesToResponse(groups))
}

// ListAvailable handles GET /groups/available
// @Summary      List joinable groups
// @Description  Approved groups with a free seat that the caller has not joined
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups/available [get]
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())

	groups, err := h.service.ListAvailableGroups(r.Context(), actor.ID)
	if err != nil {
		response.FromError(w, err, "Failed to list available groups")
		return
	}

	response.JSON(w, http.StatusOK, summariesToResponse(groups))
}

// Join handles POST /groups/{id}/join
// @Summary      Join a savings group
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	member, err := h.service.JoinGroup(r.Context(), id, actor.ID)
	if err != nil {
		response.FromError(w, err, "Failed to join group")
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// Contribute handles POST /groups/{id}/contributions
// @Summary      Contribute points
// @Description  Move points from the caller's balance into the group pool
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body ContributeRequest true "Contribution"
// @Success      201 {object} response.APIResponse{data=ContributeResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id}/contributions [post]
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	var req ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Contribute(r.Context(), id, actor.ID, req.Points)
	if err != nil {
		response.FromError(w, err, "Failed to record contribution")
		return
	}

	response.JSON(w, http.StatusCreated, result.ToResponse())
}

// ListContributions handles GET /groups/{id}/contributions
// @Summary      List group contributions
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]ContributionResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id}/contributions [get]
func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	group, _, ok := h.visibleGroup(w, r, "list contributions")
	if !ok {
		return
	}

	contributions, err := h.service.ListContributions(r.Context(), group.ID)
	if err != nil {
		response.FromError(w, err, "Failed to list contributions")
		return
	}

	out := make([]*ContributionResponse, len(contributions))
	for i, c := range contributions {
		out[i] = c.ToResponse()
	}

	response.JSON(w, http.StatusOK, out)
}

// ListPayouts handles GET /groups/{id}/payouts
// @Summary      List group payouts
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]PayoutResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id}/payouts [get]
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	group, _, ok := h.visibleGroup(w, r, "list payouts")
	if !ok {
		return
	}

	payouts, err := h.service.ListPayouts(r.Context(), group.ID)
	if err != nil {
		response.FromError(w, err, "Failed to list payouts")
		return
	}

	out := make([]*PayoutResponse, len(payouts))
	for i, p := range payouts {
		out[i] = p.ToResponse()
	}

	response.JSON(w, http.StatusOK, out)
}

// ListForBusiness handles GET /business/groups
// @Summary      List hosted groups
// @Tags         business
// @Produce      json
// @Param        status query string false "Filter by status"
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /business/groups [get]
func (h *Handler) ListForBusiness(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	status := Status(r.URL.Query().Get("status"))

	groups, err := h.service.ListBusinessGroups(r.Context(), actor.ID, status)
	if err != nil {
		response.FromError(w, err, "Failed to list groups")
		return
	}

	response.JSON(w, http.StatusOK, summariesToResponse(groups))
}

// Approve handles POST /business/groups/{id}/approve
// @Summary      Approve a pending group
// @Tags         business
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body ApproveGroupRequest true "Approval terms"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /business/groups/{id}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	var req ApproveGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.ApproveGroup(r.Context(), id, actor.ID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to approve group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// Decline handles POST /business/groups/{id}/decline
// @Summary      Decline a pending group
// @Tags         business
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /business/groups/{id}/decline [post]
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	group, err := h.service.DeclineGroup(r.Context(), id, actor.ID)
	if err != nil {
		response.FromError(w, err, "Failed to decline group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// RunSweep handles POST /admin/payouts/sweep
// @Summary      Run the payout sweep
// @Tags         admin
// @Produce      json
// @Success      200 {object} response.APIResponse{data=SweepReport}
// @Router       /admin/payouts/sweep [post]
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RunPayoutSweep(r.Context())
	if err != nil {
		response.FromError(w, err, "Failed to run payout sweep")
		return
	}

	response.JSON(w, http.StatusOK, report)
}

// Distribute handles POST /admin/groups/{id}/distribute
// @Summary      Distribute a group's bonus now
// @Tags         admin
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=PayoutResult}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /admin/groups/{id}/distribute [post]
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(r)
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	result, err := h.service.Distribute(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to distribute payout")
		return
	}

	response.JSON(w, http.StatusOK, result)
}

func summariesToResponse(groups []*GroupSummary) []*GroupResponse {
	out := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		out[i] = g.ToResponse()
	}
	return out
}
