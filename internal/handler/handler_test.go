package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

const (
	roomLat = 12.9716
	roomLon = 77.5946
)

type env struct {
	router *gin.Engine
	cfg    config.App
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.App{
		JWTIssuer:     "classtrack-test",
		JWTSigningKey: "test-signing-key",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	mem := store.NewMemory()
	dir := roster.NewStatic().
		AddBatch("batch-1", "s1", "s2", "s3").
		AddLocation("room-1", "Lab 1", roomLat, roomLon).
		AddSubject("CS301", "Databases")

	sessions := session.NewService(mem, dir)
	ledger := attendance.NewService(mem, dir, nil, geo.DefaultRadiusMeters)
	h := New(cfg, sessions, ledger)

	r := gin.New()
	public := r.Group("/v1")
	h.RegisterPublic(public)
	authGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	h.Register(authGroup)

	return &env{router: r, cfg: cfg}
}

func (e *env) token(t *testing.T, subject string, role model.Role) string {
	t.Helper()
	pair, err := auth.Issue(subject, role, e.cfg.JWTIssuer, e.cfg.JWTSigningKey, e.cfg.AccessTTL, e.cfg.RefreshTTL)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return pair.AccessToken
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorKind string          `json:"errorKind"`
	Message   string          `json:"message"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode envelope from %q: %v", w.Body.String(), err)
	}
	return w.Code, out
}

func (e *env) createSession(t *testing.T, token string) string {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/v1/sessions", token, gin.H{
		"title":           "Databases L1",
		"description":     "joins",
		"valid_from":      time.Now().Add(-time.Hour).Format(time.RFC3339),
		"valid_to":        time.Now().Add(time.Hour).Format(time.RFC3339),
		"subject_code":    "CS301",
		"batch_id":        "batch-1",
		"class_config_id": "room-1",
	})
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("create session = %d %+v", code, resp)
	}
	var sess model.Session
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess.ID
}

func TestTokenEndpoint(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodPost, "/v1/auth/token", "", gin.H{"subject": "prof-1", "role": "professor"})
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("token issue = %d %+v", code, resp)
	}
	code, resp = e.do(t, http.MethodPost, "/v1/auth/token", "", gin.H{"subject": "x", "role": "admin"})
	if code != http.StatusBadRequest || resp.ErrorKind != "ValidationError" {
		t.Errorf("bad role = %d %+v, want 400 ValidationError", code, resp)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodGet, "/v1/sessions", "", nil)
	if code != http.StatusUnauthorized || resp.Success {
		t.Errorf("unauthenticated list = %d %+v, want 401", code, resp)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	profTok := e.token(t, "prof-1", model.RoleProfessor)
	studTok := e.token(t, "s1", model.RoleStudent)
	id := e.createSession(t, profTok)

	// Student cannot create sessions.
	code, resp := e.do(t, http.MethodPost, "/v1/sessions", studTok, gin.H{})
	if code != http.StatusForbidden {
		t.Errorf("student create = %d %+v, want 403", code, resp)
	}

	// Self-mark before activation is refused.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/attendance/self", studTok,
		gin.H{"latitude": roomLat, "longitude": roomLon})
	if code != http.StatusConflict || resp.ErrorKind != "SessionNotActive" {
		t.Errorf("inactive self-mark = %d %+v, want 409 SessionNotActive", code, resp)
	}

	// Activate.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", profTok, gin.H{"target": "active"})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("transition = %d %+v", code, resp)
	}

	// Backward transition is illegal.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", profTok, gin.H{"target": "new"})
	if code != http.StatusConflict || resp.ErrorKind != "IllegalTransition" {
		t.Errorf("backward transition = %d %+v, want 409 IllegalTransition", code, resp)
	}

	// In-range self-mark succeeds.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/attendance/self", studTok,
		gin.H{"latitude": roomLat, "longitude": roomLon})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("self-mark = %d %+v", code, resp)
	}

	// Second attempt reports AlreadyMarked.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/attendance/self", studTok,
		gin.H{"latitude": roomLat, "longitude": roomLon})
	if code != http.StatusConflict || resp.ErrorKind != "AlreadyMarked" {
		t.Errorf("repeat self-mark = %d %+v, want 409 AlreadyMarked", code, resp)
	}

	// Bulk-mark s2 as the creator.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/attendance/bulk", profTok,
		gin.H{"student_ids": []string{"s2"}})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("bulk mark = %d %+v", code, resp)
	}

	// Roster is ordered s1, s2, s3 with the expected statuses.
	code, resp = e.do(t, http.MethodGet, "/v1/sessions/"+id+"/roster", profTok, nil)
	if code != http.StatusOK {
		t.Fatalf("roster = %d %+v", code, resp)
	}
	var recs []model.AttendanceRecord
	if err := json.Unmarshal(resp.Data, &recs); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	want := []struct {
		id     string
		status model.MarkStatus
	}{{"s1", model.MarkPresent}, {"s2", model.MarkPresent}, {"s3", model.MarkAbsent}}
	if len(recs) != len(want) {
		t.Fatalf("roster size = %d, want %d", len(recs), len(want))
	}
	for i, w := range want {
		if recs[i].StudentID != w.id || recs[i].Status != w.status {
			t.Errorf("roster[%d] = %s/%s, want %s/%s", i, recs[i].StudentID, recs[i].Status, w.id, w.status)
		}
	}
}

func TestSelfMarkOutOfRangeCarriesDistance(t *testing.T) {
	e := newEnv(t)
	profTok := e.token(t, "prof-1", model.RoleProfessor)
	studTok := e.token(t, "s1", model.RoleStudent)
	id := e.createSession(t, profTok)
	if code, resp := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", profTok, gin.H{"target": "active"}); code != http.StatusOK {
		t.Fatalf("transition = %d %+v", code, resp)
	}

	code, resp := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/attendance/self", studTok,
		gin.H{"latitude": roomLat, "longitude": roomLon + 0.001})
	if code != http.StatusForbidden || resp.ErrorKind != "OutOfRange" {
		t.Fatalf("out-of-range mark = %d %+v, want 403 OutOfRange", code, resp)
	}
	var data struct {
		DistanceMeters float64 `json:"distance_meters"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.DistanceMeters < 100 || data.DistanceMeters > 120 {
		t.Errorf("distance = %v, want ~111", data.DistanceMeters)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	e := newEnv(t)
	profTok := e.token(t, "prof-1", model.RoleProfessor)

	// Inverted window.
	code, resp := e.do(t, http.MethodPost, "/v1/sessions", profTok, gin.H{
		"title":           "Bad",
		"description":     "window inverted",
		"valid_from":      time.Now().Add(time.Hour).Format(time.RFC3339),
		"valid_to":        time.Now().Format(time.RFC3339),
		"subject_code":    "CS301",
		"batch_id":        "batch-1",
		"class_config_id": "room-1",
	})
	if code != http.StatusBadRequest || resp.ErrorKind != "InvalidTimeRange" {
		t.Errorf("inverted window = %d %+v, want 400 InvalidTimeRange", code, resp)
	}

	// Unknown batch.
	code, resp = e.do(t, http.MethodPost, "/v1/sessions", profTok, gin.H{
		"title":           "Bad",
		"description":     "unknown batch",
		"valid_from":      time.Now().Format(time.RFC3339),
		"valid_to":        time.Now().Add(time.Hour).Format(time.RFC3339),
		"subject_code":    "CS301",
		"batch_id":        "nope",
		"class_config_id": "room-1",
	})
	if code != http.StatusNotFound || resp.ErrorKind != "NotFound" {
		t.Errorf("unknown batch = %d %+v, want 404 NotFound", code, resp)
	}

	// Missing session.
	code, resp = e.do(t, http.MethodGet, fmt.Sprintf("/v1/sessions/%s", "missing"), profTok, nil)
	if code != http.StatusNotFound || resp.ErrorKind != "NotFound" {
		t.Errorf("missing session = %d %+v, want 404 NotFound", code, resp)
	}
}

func TestDeleteOverHTTP(t *testing.T) {
	e := newEnv(t)
	profTok := e.token(t, "prof-1", model.RoleProfessor)
	otherTok := e.token(t, "prof-2", model.RoleProfessor)
	id := e.createSession(t, profTok)

	code, resp := e.do(t, http.MethodDelete, "/v1/sessions/"+id, otherTok, nil)
	if code != http.StatusForbidden || resp.ErrorKind != "Forbidden" {
		t.Errorf("non-creator delete = %d %+v, want 403 Forbidden", code, resp)
	}
	code, resp = e.do(t, http.MethodDelete, "/v1/sessions/"+id, profTok, nil)
	if code != http.StatusOK || !resp.Success {
		t.Errorf("creator delete = %d %+v, want 200", code, resp)
	}
	code, resp = e.do(t, http.MethodGet, "/v1/sessions/"+id, profTok, nil)
	if code != http.StatusNotFound {
		t.Errorf("deleted session get = %d, want 404", code)
	}
}
