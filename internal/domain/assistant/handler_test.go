package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
)

func newTestManager() *Manager {
	conv := &fakeConversation{reply: func(string) (<-chan Fragment, error) {
		return scripted(texts("Ibuprofen ", "is typically ", "200-400mg.")...), nil
	}}
	return NewManager(Deps{Provider: &fakeProvider{conv: conv}, Logger: zerolog.Nop()})
}

func assistantRequest(method, target string, body []byte, actor *access.Actor) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if len(body) > 0 && body[0] == '{' {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != nil {
		req = req.WithContext(access.WithActor(req.Context(), actor))
	}
	return req
}

func TestManager_OpenReusesSession(t *testing.T) {
	m := newTestManager()
	a := m.Open(context.Background(), house)
	b := m.Open(context.Background(), house)
	if a != b {
		t.Error("expected the same session for the same actor")
	}
	if a.Generation() != 2 || m.Len() != 1 {
		t.Errorf("unexpected generation %d len %d", a.Generation(), m.Len())
	}
}

func TestManager_OpenWithoutActor(t *testing.T) {
	m := newTestManager()
	s := m.Open(context.Background(), nil)

	view := s.Snapshot()
	if len(view.Turns) != 1 || view.Turns[0].Text != Greeting(nil) {
		t.Errorf("expected generic greeting, got %+v", view.Turns)
	}
	if got, ok := m.Get(""); !ok || got != s {
		t.Error("expected anonymous session stored under the empty ID")
	}
}

func TestManager_Close(t *testing.T) {
	m := newTestManager()
	s := m.Open(context.Background(), house)

	if !m.Close(house.ID) {
		t.Fatal("expected session to exist")
	}
	if s.Snapshot().State != StateClosed {
		t.Error("expected closed session")
	}
	if _, ok := m.Get(house.ID); ok {
		t.Error("expected session removed")
	}
	if m.Close(house.ID) {
		t.Error("second close should report no session")
	}
}

func TestManager_CloseAll(t *testing.T) {
	m := newTestManager()
	s1 := m.Open(context.Background(), house)
	s2 := m.Open(context.Background(), &access.Actor{ID: "u3", FirstName: "Florence", Role: access.RoleNurse, TenantID: "tenant-123"})
	m.CloseAll()
	if m.Len() != 0 || s1.Snapshot().State != StateClosed || s2.Snapshot().State != StateClosed {
		t.Error("expected every session closed")
	}
}

func TestHandler_SessionLifecycle(t *testing.T) {
	h := NewHandler(newTestManager(), access.DefaultPolicy(), 0)
	e := echo.New()

	rec := httptest.NewRecorder()
	err := h.GetSession(e.NewContext(assistantRequest(http.MethodGet, "/api/v1/assistant/session", nil, house), rec))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before open, got %v", err)
	}

	rec = httptest.NewRecorder()
	if err := h.OpenSession(e.NewContext(assistantRequest(http.MethodPost, "/api/v1/assistant/session", nil, house), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var view View
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.State != StateIdle || len(view.Turns) != 1 {
		t.Errorf("unexpected view %+v", view)
	}

	rec = httptest.NewRecorder()
	body := []byte(`{"text":"What is the usual ibuprofen dose?"}`)
	if err := h.SendMessage(e.NewContext(assistantRequest(http.MethodPost, "/api/v1/assistant/messages", body, house), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json.Unmarshal(rec.Body.Bytes(), &view)
	if len(view.Turns) != 3 || view.Turns[2].Text != "Ibuprofen is typically 200-400mg." {
		t.Errorf("unexpected turns %+v", view.Turns)
	}

	rec = httptest.NewRecorder()
	if err := h.CloseSession(e.NewContext(assistantRequest(http.MethodDelete, "/api/v1/assistant/session", nil, house), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_SendMessage_Empty(t *testing.T) {
	m := newTestManager()
	m.Open(context.Background(), house)
	h := NewHandler(m, access.DefaultPolicy(), 0)
	e := echo.New()

	c := e.NewContext(assistantRequest(http.MethodPost, "/", []byte(`{"text":"  "}`), house), httptest.NewRecorder())
	err := h.SendMessage(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SendMessage_UsesDraft(t *testing.T) {
	m := newTestManager()
	s := m.Open(context.Background(), house)
	h := NewHandler(m, access.DefaultPolicy(), 0)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.SetInput(e.NewContext(assistantRequest(http.MethodPut, "/", []byte(`{"text":"draft question"}`), house), rec)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"can_send":true`) {
		t.Errorf("expected can_send true, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.SendMessage(e.NewContext(assistantRequest(http.MethodPost, "/", []byte(`{}`), house), rec)); err != nil {
		t.Fatal(err)
	}
	if turns := s.Snapshot().Turns; turns[1].Text != "draft question" {
		t.Errorf("expected draft sent, got %+v", turns)
	}
}

func TestHandler_SendMessage_Closed(t *testing.T) {
	m := newTestManager()
	s := m.Open(context.Background(), house)
	s.Close()
	h := NewHandler(m, access.DefaultPolicy(), 0)

	c := echo.New().NewContext(assistantRequest(http.MethodPost, "/", []byte(`{"text":"hi"}`), house), httptest.NewRecorder())
	err := h.SendMessage(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Dictate_Unavailable(t *testing.T) {
	m := newTestManager()
	m.Open(context.Background(), house)
	h := NewHandler(m, access.DefaultPolicy(), 0)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.Dictate(e.NewContext(assistantRequest(http.MethodPost, "/", []byte("RIFF...."), house), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp dictationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Notice != SpeechUnavailableNotice || resp.Dictation != DictationIdle {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_RoutesRequireCapability(t *testing.T) {
	e := echo.New()
	h := NewHandler(newTestManager(), access.DefaultPolicy(), 0)
	h.RegisterRoutes(e.Group("/api/v1"))

	// every role may use the assistant
	for _, role := range access.AllRoles {
		rec := httptest.NewRecorder()
		req := assistantRequest(http.MethodPost, "/api/v1/assistant/session", nil, &access.Actor{ID: "x-" + string(role), Role: role, TenantID: "tenant-123"})
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Errorf("%s: expected 201, got %d", role, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, assistantRequest(http.MethodPost, "/api/v1/assistant/session", nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without actor, got %d", rec.Code)
	}
}
