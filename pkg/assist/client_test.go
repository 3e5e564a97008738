package assist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

const processReply = `{
  "response": {
    "response_type": "action_done",
    "language": "en",
    "data": {"targets": [], "success": [{"id": "light.kitchen"}], "failed": []},
    "speech": {"plain": {"speech": "Turned on the light", "extra_data": null}}
  },
  "conversation_id": "01J000"
}`

type requestLog struct {
	mu   sync.Mutex
	seen []string
}

func (l *requestLog) add(s string) {
	l.mu.Lock()
	l.seen = append(l.seen, s)
	l.mu.Unlock()
}

func (l *requestLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.seen, ",")
}

func newTestServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.Method + " " + r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "401: Unauthorized")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/":
			io.WriteString(w, `{"message": "API running."}`)
		case "/api/conversation/process":
			var req Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.AgentID != "conversation.home_assistant" || req.Language != "en" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			io.WriteString(w, processReply)
		case "/api/services/light/turn_on":
			var data map[string]any
			json.NewDecoder(r.Body).Decode(&data)
			if data["entity_id"] != "light.kitchen" {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, "missing entity")
				return
			}
			io.WriteString(w, `[{"entity_id": "light.kitchen", "state": "on"}]`)
		case "/api/states/light.kitchen":
			io.WriteString(w, `{"entity_id": "light.kitchen", "state": "on", "attributes": {"brightness": 255}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, "404: Not Found")
		}
	}))
	return srv, seen
}

func TestClient_Process(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	got, err := c.Process(context.Background(), Request{
		Text:     "turn on the kitchen light",
		Language: "en",
		AgentID:  "conversation.home_assistant",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.ResponseType != ResponseActionDone {
		t.Errorf("ResponseType = %q", got.ResponseType)
	}
	if got.Speech != "Turned on the light" {
		t.Errorf("Speech = %q", got.Speech)
	}
	if got.ConversationID != "01J000" {
		t.Errorf("ConversationID = %q", got.ConversationID)
	}
	if _, ok := got.Data["success"]; !ok {
		t.Errorf("Data = %v, want success key", got.Data)
	}
}

func TestClient_HTTPError(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	err := c.Ping(context.Background())
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("Ping() error = %v, want *HTTPError", err)
	}
	if herr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", herr.StatusCode)
	}
}

func TestClient_NoURL(t *testing.T) {
	c := NewClient("", "secret")
	if _, err := c.Process(context.Background(), Request{Text: "x"}); !errors.Is(err, ErrNoURL) {
		t.Errorf("Process() error = %v, want ErrNoURL", err)
	}
}

func TestClient_ServiceAndState(t *testing.T) {
	srv, seen := newTestServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	changed, err := c.CallService(ctx, "light", "turn_on", map[string]any{"entity_id": "light.kitchen"})
	if err != nil {
		t.Fatalf("CallService() error: %v", err)
	}
	if len(changed) != 1 || changed[0].State != "on" {
		t.Errorf("CallService() = %+v", changed)
	}
	st, err := c.State(ctx, "light.kitchen")
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if st.Attributes["brightness"] != float64(255) {
		t.Errorf("brightness = %v", st.Attributes["brightness"])
	}
	want := []string{"GET /api/", "POST /api/services/light/turn_on", "GET /api/states/light.kitchen"}
	if got := seen.String(); got != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestTools(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	tools := Tools(NewClient(srv.URL, "secret"))
	if len(tools) != 2 {
		t.Fatalf("len(Tools) = %d, want 2", len(tools))
	}
	byName := map[string]*llm.FuncTool{}
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	ctx := context.Background()
	got := byName["call_service"].Invoke(ctx, &llm.ToolCall{
		Name:      "call_service",
		Arguments: `{"domain": "light", "service": "turn_on", "entity_id": "light.kitchen"}`,
	})
	if !strings.Contains(got, `"success":true`) {
		t.Errorf("call_service = %s", got)
	}

	got = byName["get_state"].Invoke(ctx, &llm.ToolCall{Name: "get_state", Arguments: `{"entity_id": "light.kitchen"}`})
	if !strings.Contains(got, `"state":"on"`) {
		t.Errorf("get_state = %s", got)
	}

	got = byName["call_service"].Invoke(ctx, &llm.ToolCall{Arguments: `{"domain": "light", "service": "turn_on"}`})
	if !strings.Contains(got, `"error"`) {
		t.Errorf("call_service without entity = %s, want error", got)
	}
}

func TestParseResponse_Missing(t *testing.T) {
	got, err := DecodeResponse(context.Background(), []byte(`{"response": {"response_type": "error", "speech": {}}}`))
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if got.ResponseType != ResponseError || got.Speech != "" || got.ConversationID != "" {
		t.Errorf("DecodeResponse() = %+v", got)
	}
	if _, err := DecodeResponse(context.Background(), []byte(`not json`)); err == nil {
		t.Error("DecodeResponse(not json) error = nil")
	}
}
