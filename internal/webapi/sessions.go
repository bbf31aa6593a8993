package webapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/session"
)

// sessionResponse is the wire shape of one recognition session.
type sessionResponse struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	Running     bool   `json:"running"`
	Status      string `json:"status"`
	Loaded      int    `json:"loaded"`
	Group       string `json:"group,omitempty"`
	MarkedToday int    `json:"marked_today"`
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:          sess.ID().String(),
		Mode:        string(sess.Mode()),
		Running:     sess.Running(),
		Status:      sess.Status(),
		Loaded:      sess.Loaded(),
		Group:       sess.GroupTag(),
		MarkedToday: sess.MarkedToday(),
	}
}

type startSessionRequest struct {
	Mode  string `json:"mode"`
	Group string `json:"group,omitempty"`  // group sessions: tag to load instead of the configured one
	RegNo string `json:"reg_no,omitempty"` // verify sessions: identifier to expect
}

type messageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// statusForError maps an engine error to an HTTP status through its
// category.
func statusForError(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategorySession),
		errors.IsCategory(err, errors.CategoryState):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryDevice),
		errors.IsCategory(err, errors.CategoryCapture):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseSessionID reads the :id route parameter.
func parseSessionID(ctx echo.Context) (uuid.UUID, error) {
	return uuid.Parse(ctx.Param("id"))
}

// GetSessions lists the live sessions, oldest first.
func (c *Controller) GetSessions(ctx echo.Context) error {
	sessions := c.registry.List()
	resp := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, toSessionResponse(sess))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// StartSession starts a session in the requested mode. Group sessions
// accept a tag override; verify sessions accept the identifier up
// front.
func (c *Controller) StartSession(ctx echo.Context) error {
	var req startSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	mode := session.Mode(req.Mode)
	switch mode {
	case session.ModeVerify, session.ModeOpen, session.ModeGroup:
	default:
		return c.HandleError(ctx, nil, "mode must be verify, open, or group", http.StatusBadRequest)
	}

	sess, err := c.registry.StartSession(mode)
	if err != nil {
		return c.HandleError(ctx, err, "failed to start session", statusForError(err))
	}

	if mode == session.ModeGroup && req.Group != "" && req.Group != sess.GroupTag() {
		if err := c.registry.SwitchGroup(sess.ID(), req.Group); err != nil {
			return c.HandleError(ctx, err, "failed to select group", statusForError(err))
		}
	}
	if mode == session.ModeVerify && req.RegNo != "" {
		if err := c.registry.Supply(sess.ID(), req.RegNo); err != nil {
			return c.HandleError(ctx, err, "failed to supply identifier", statusForError(err))
		}
	}

	return ctx.JSON(http.StatusCreated, toSessionResponse(sess))
}

// GetSession returns one session's state.
func (c *Controller) GetSession(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	sess, ok := c.registry.Get(id)
	if !ok {
		return c.HandleError(ctx, nil, "session not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, toSessionResponse(sess))
}

// StopSession stops a session and waits for its loop to exit.
func (c *Controller) StopSession(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	if err := c.registry.StopSession(id); err != nil {
		return c.HandleError(ctx, err, "failed to stop session", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "session stopped", ID: id.String()})
}

type supplyRequest struct {
	RegNo string `json:"reg_no"`
}

// SupplyIdentifier hands an identifier to a verify session.
func (c *Controller) SupplyIdentifier(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	var req supplyRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if req.RegNo == "" {
		return c.HandleError(ctx, nil, "reg_no is required", http.StatusBadRequest)
	}
	if err := c.registry.Supply(id, req.RegNo); err != nil {
		return c.HandleError(ctx, err, "failed to supply identifier", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "identifier supplied", ID: id.String()})
}

type switchGroupRequest struct {
	Group string `json:"group"`
}

// SwitchGroup points a group session at a different tag.
func (c *Controller) SwitchGroup(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	var req switchGroupRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if req.Group == "" {
		return c.HandleError(ctx, nil, "group is required", http.StatusBadRequest)
	}
	if err := c.registry.SwitchGroup(id, req.Group); err != nil {
		return c.HandleError(ctx, err, "failed to switch group", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "group switched", ID: id.String()})
}

// ReloadRoster queues a full roster refresh on the engine's control
// channel. The refresh itself runs off the request path.
func (c *Controller) ReloadRoster(ctx echo.Context) error {
	if c.controlChan == nil {
		return c.HandleError(ctx, nil, "engine control unavailable", http.StatusServiceUnavailable)
	}
	select {
	case c.controlChan <- SignalReloadRoster:
	default:
		// A reload is already queued; the pending one covers this
		// request too.
	}
	return ctx.JSON(http.StatusAccepted, messageResponse{Message: "roster reload queued"})
}
