package casenote

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/casenote/casenote/internal/platform/auth"
	"github.com/casenote/casenote/pkg/pagination"
)

const maxClassifyRecords = 1000

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Shared endpoints – CA, MR staff, admin
	shared := api.Group("", auth.RequireRole(string(RoleCA), string(RoleMRStaff)))
	shared.GET("/case-notes/involvements", h.ListInvolvements)
	shared.POST("/case-notes/classify", h.Classify)
	shared.GET("/case-notes/:id", h.GetDetail)

	// Clinic-assistant surfaces – CA, admin
	caGroup := api.Group("", auth.RequireRole(string(RoleCA)))
	caGroup.GET("/case-notes/mine", h.ListMine)
	caGroup.GET("/case-notes/returns", h.ListReturns)
	caGroup.POST("/case-notes/returns/selection", h.ReconcileSelection)

	// MR-staff triage – MR staff, admin
	mrGroup := api.Group("", auth.RequireRole(string(RoleMRStaff)))
	mrGroup.GET("/case-notes/review/requesters", h.ListReviewGroups)
}

// viewerFromRequest builds the viewer from the authenticated identity. When
// a token carries several roles the most privileged one wins.
func viewerFromRequest(c echo.Context) (Viewer, error) {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(auth.UserIDFromContext(ctx), 10, 64)
	if err != nil || id <= 0 {
		return Viewer{}, ErrNoViewer
	}

	v := Viewer{ID: id}
	rank := map[Role]int{RoleCA: 1, RoleMRStaff: 2, RoleAdmin: 3}
	for _, raw := range auth.RolesFromContext(ctx) {
		if r, ok := ParseRole(raw); ok && rank[r] > rank[v.Role] {
			v.Role = r
		}
	}
	if v.Role == "" {
		return Viewer{}, ErrNoViewer
	}
	return v, nil
}

func httpError(err error) error {
	code := MapHTTPStatus(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

func invalidFilter(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidFilter.Error()+": "+msg)
}

func parseOptionalID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, invalidFilter(name + " must be a positive integer")
	}
	return id, nil
}

func (h *Handler) ListMine(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}

	status, ok := ParseStatus(c.QueryParam("status"))
	if !ok {
		return invalidFilter("unknown status " + strconv.Quote(c.QueryParam("status")))
	}
	inv, ok := ParseInvolvement(c.QueryParam("involvement"))
	if !ok {
		return invalidFilter("unknown involvement " + strconv.Quote(c.QueryParam("involvement")))
	}

	views, err := h.svc.MyRequests(c.Request().Context(), viewer, MyRequestsFilter{
		Status:      status,
		Involvement: inv,
		Search:      c.QueryParam("q"),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Paginate(views, pagination.FromContext(c)))
}

func (h *Handler) ListReturns(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}
	deptID, err := parseOptionalID(c, "department_id")
	if err != nil {
		return err
	}

	list, err := h.svc.ReturnCaseNotes(c.Request().Context(), viewer, ReturnFilter{Search: c.QueryParam("q"), DepartmentID: deptID})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

type selectionRequest struct {
	SelectedIDs  []int64 `json:"selected_ids"`
	SelectAll    bool    `json:"select_all"`
	Query        string  `json:"q"`
	DepartmentID int64   `json:"department_id"`
}

type selectionResponse struct {
	SelectedIDs []int64 `json:"selected_ids"`
	Count       int     `json:"count"`
}

// ReconcileSelection drops stale IDs from a client-held return selection
// after the list has been reloaded or refiltered.
func (h *Handler) ReconcileSelection(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DepartmentID < 0 {
		return invalidFilter("department_id must be a positive integer")
	}

	sel, err := h.svc.ReconcileReturnSelection(c.Request().Context(), viewer, req.SelectedIDs, req.SelectAll,
		ReturnFilter{Search: req.Query, DepartmentID: req.DepartmentID})
	if err != nil {
		return httpError(err)
	}
	ids := sel.IDs()
	return c.JSON(http.StatusOK, selectionResponse{SelectedIDs: ids, Count: len(ids)})
}

func (h *Handler) ListReviewGroups(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}

	status, ok := ParseStatus(c.QueryParam("status"))
	if !ok {
		return invalidFilter("unknown status " + strconv.Quote(c.QueryParam("status")))
	}
	deptID, err := parseOptionalID(c, "department_id")
	if err != nil {
		return err
	}
	onlyPending := false
	if raw := c.QueryParam("only_pending"); raw != "" {
		if onlyPending, err = strconv.ParseBool(raw); err != nil {
			return invalidFilter("only_pending must be a boolean")
		}
	}

	groups, err := h.svc.ReviewGroups(c.Request().Context(), viewer, ReviewQuery{Status: status, DepartmentID: deptID}, onlyPending)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Paginate(groups, pagination.FromContext(c)))
}

func (h *Handler) GetDetail(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	d, err := h.svc.Detail(c.Request().Context(), viewer, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type classifyRequest struct {
	Records []*Request `json:"records"`
}

// Classify runs the classifier over records supplied in the body, for UI
// code that already holds snapshots.
func (h *Handler) Classify(c echo.Context) error {
	viewer, err := viewerFromRequest(c)
	if err != nil {
		return httpError(err)
	}
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Records) > maxClassifyRecords {
		return echo.NewHTTPError(http.StatusBadRequest,
			"at most "+strconv.Itoa(maxClassifyRecords)+" records per call")
	}
	for i, r := range req.Records {
		if r == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "records["+strconv.Itoa(i)+"] is null")
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": h.svc.ClassifySnapshot(viewer, req.Records),
	})
}

type involvementOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ListInvolvements returns the involvement filter options in display order.
func (h *Handler) ListInvolvements(c echo.Context) error {
	out := make([]involvementOption, 0, len(Involvements))
	for _, inv := range Involvements {
		out = append(out, involvementOption{Value: inv.Slug(), Label: string(inv)})
	}
	return c.JSON(http.StatusOK, out)
}
