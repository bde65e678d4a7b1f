// Package handler exposes the engine over HTTP. Every response uses the
// {success, data, errorKind, message} envelope; errorKind mirrors the
// engine's error taxonomy so the UI can branch without parsing messages.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/geo"
	"classtrack/internal/model"
	"classtrack/internal/roster"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

// Handler wires the engine services to gin routes.
type Handler struct {
	cfg      config.App
	sessions *session.Service
	ledger   *attendance.Service
}

// New creates a handler over the lifecycle manager and the ledger.
func New(cfg config.App, sessions *session.Service, ledger *attendance.Service) *Handler {
	return &Handler{cfg: cfg, sessions: sessions, ledger: ledger}
}

// RegisterPublic registers routes that do not require a bearer token.
func (h *Handler) RegisterPublic(r gin.IRoutes) {
	r.POST("/auth/token", h.issueToken)
}

// Register registers the authenticated engine routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/sessions", auth.RequireRole(model.RoleProfessor), h.createSession)
	r.GET("/sessions", h.listSessions)
	r.GET("/sessions/:id", h.getSession)
	r.PATCH("/sessions/:id", auth.RequireRole(model.RoleProfessor), h.updateSession)
	r.DELETE("/sessions/:id", auth.RequireRole(model.RoleProfessor), h.deleteSession)
	r.POST("/sessions/:id/transition", auth.RequireRole(model.RoleProfessor), h.transitionSession)
	r.POST("/sessions/:id/attendance/bulk", auth.RequireRole(model.RoleProfessor), h.markBulk)
	r.POST("/sessions/:id/attendance/self", auth.RequireRole(model.RoleStudent), h.markSelf)
	r.GET("/sessions/:id/roster", h.getRoster)
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, err error) {
	kind, status := classify(err)
	body := gin.H{"success": false, "errorKind": kind, "message": err.Error()}
	var oor *attendance.OutOfRangeError
	if errors.As(err, &oor) {
		body["data"] = gin.H{"distance_meters": oor.DistanceMeters, "radius_meters": oor.RadiusMeters}
	}
	c.JSON(status, body)
}

// classify maps engine errors to the caller-facing taxonomy. Unknown
// errors are treated as transient storage failures, safe to retry.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, session.ErrInvalidTimeRange):
		return "InvalidTimeRange", http.StatusBadRequest
	case errors.Is(err, session.ErrValidation):
		return "ValidationError", http.StatusBadRequest
	case errors.Is(err, geo.ErrInvalidCoordinates):
		return "InvalidCoordinates", http.StatusBadRequest
	case errors.Is(err, session.ErrIllegalTransition):
		return "IllegalTransition", http.StatusConflict
	case errors.Is(err, attendance.ErrSessionNotActive):
		return "SessionNotActive", http.StatusConflict
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return "AlreadyMarked", http.StatusConflict
	case errors.Is(err, attendance.ErrOutOfRange):
		return "OutOfRange", http.StatusForbidden
	case errors.Is(err, attendance.ErrNotInRoster):
		return "NotInRoster", http.StatusForbidden
	case errors.Is(err, session.ErrForbidden), errors.Is(err, attendance.ErrForbidden):
		return "Forbidden", http.StatusForbidden
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, roster.ErrBatchNotFound),
		errors.Is(err, roster.ErrConfigNotFound),
		errors.Is(err, roster.ErrSubjectNotFound):
		return "NotFound", http.StatusNotFound
	default:
		return "StorageUnavailable", http.StatusServiceUnavailable
	}
}

// issueToken stands in for the out-of-scope identity provider: it signs a
// token for the given subject and role so the engine can be exercised
// end to end.
func (h *Handler) issueToken(c *gin.Context) {
	var req struct {
		Subject string `json:"subject" binding:"required"`
		Role    string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	pair, err := auth.Issue(req.Subject, model.Role(req.Role), h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	})
}

func (h *Handler) createSession(c *gin.Context) {
	var in session.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), auth.Caller(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, sess)
}

func (h *Handler) listSessions(c *gin.Context) {
	status := model.SessionStatus(c.Query("status"))
	sessions, err := h.sessions.List(c.Request.Context(), auth.Caller(c), status)
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	ok(c, http.StatusOK, sessions)
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), auth.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

func (h *Handler) updateSession(c *gin.Context) {
	var in session.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	sess, err := h.sessions.Update(c.Request.Context(), auth.Caller(c), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), auth.Caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) transitionSession(c *gin.Context) {
	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	sess, err := h.sessions.Transition(c.Request.Context(), auth.Caller(c), c.Param("id"), model.SessionStatus(req.Target))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

func (h *Handler) markBulk(c *gin.Context) {
	var req struct {
		StudentIDs []string `json:"student_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	marked, err := h.ledger.MarkBulk(c.Request.Context(), auth.Caller(c), c.Param("id"), req.StudentIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"marked": marked})
}

func (h *Handler) markSelf(c *gin.Context) {
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorKind": "ValidationError", "message": err.Error()})
		return
	}
	res, err := h.ledger.MarkSelf(c.Request.Context(), auth.Caller(c), c.Param("id"), *req.Latitude, *req.Longitude)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (h *Handler) getRoster(c *gin.Context) {
	recs, err := h.ledger.GetRoster(c.Request.Context(), auth.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if recs == nil {
		recs = []model.AttendanceRecord{}
	}
	ok(c, http.StatusOK, recs)
}
