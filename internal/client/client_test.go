package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cockpit/internal/types"
)

func TestListEventsSendsSessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("session_id"); got != "s1" {
			t.Errorf("unexpected session_id: %q", got)
		}
		_ = json.NewEncoder(w).Encode(EventsResponse{Events: []types.Event{{ID: "e1", Title: "Standup"}}})
	}))
	defer server.Close()

	events, err := New(server.URL).ListEvents(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" || events[0].Title != "Standup" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestTaskAPIUsesConfiguredEndpointAndKey(t *testing.T) {
	taskServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad key"})
			return
		}
		switch r.URL.Path {
		case "/v2/tasks":
			if got := r.URL.Query().Get("project"); got != "inbox" {
				t.Errorf("unexpected project: %q", got)
			}
			_ = json.NewEncoder(w).Encode(TasksResponse{Tasks: []types.Task{{ID: "t1", Status: types.TaskStatusTodo}}})
		case "/v2/projects":
			_ = json.NewEncoder(w).Encode(ProjectsResponse{Projects: []types.Project{{ID: "p1", Name: "Inbox"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer taskServer.Close()

	cfg := types.TaskAPIConfig{Endpoint: taskServer.URL + "/v2/", APIKey: "secret", DefaultProject: "inbox"}
	c := New("http://backend.invalid", WithTaskAPI(func() types.TaskAPIConfig { return cfg }))

	tasks, err := c.ListTasks(context.Background(), "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "Inbox" {
		t.Fatalf("unexpected projects: %#v", projects)
	}

	cfg.APIKey = "rotated"
	_, err = c.ListProjects(context.Background())
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" {
		t.Fatalf("expected unauthorized api error, got %v", err)
	}
}

func TestTaskAPIFallsBackToBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "" {
			t.Errorf("backend requests must not carry the task api key")
		}
		if r.URL.Path != "/api/projects" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(ProjectsResponse{Projects: []types.Project{{ID: "p1"}}})
	}))
	defer server.Close()

	c := New(server.URL, WithTaskAPI(func() types.TaskAPIConfig { return types.TaskAPIConfig{APIKey: "unused"} }))
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("unexpected projects: %#v", projects)
	}
}

func TestAgentInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent-info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"agentName":"BETO","model":"gemini-2.5-pro"}`))
	}))
	defer server.Close()

	info, err := New(server.URL).AgentInfo(context.Background(), "s1")
	if err != nil {
		t.Fatalf("AgentInfo: %v", err)
	}
	if info.AgentName != "BETO" || info.Model != "gemini-2.5-pro" {
		t.Fatalf("unexpected agent info: %#v", info)
	}
}

func TestHealthAndAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"ok":true,"version":"1.2.0"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL + "/")
	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !health.OK || health.Version != "1.2.0" {
		t.Fatalf("unexpected health: %#v", health)
	}

	_, err = c.ListEvents(context.Background(), "")
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 api error, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "502") {
		t.Fatalf("expected status text in message, got %q", apiErr.Message)
	}
}

func TestSendRawPostsJSON(t *testing.T) {
	received := make(chan types.OutboundMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions/s1/messages" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var msg types.OutboundMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- msg
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	msg := types.OutboundMessage{Type: types.OutboundTypeMessage, SessionID: "s1", Text: "hello"}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := New(server.URL).SendRaw(context.Background(), "s1", payload); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	select {
	case got := <-received:
		if got != msg {
			t.Fatalf("unexpected message: %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not receive message")
	}
	if err := New(server.URL).SendRaw(context.Background(), " ", payload); err == nil {
		t.Fatalf("expected error for blank session id")
	}
	if err := New(server.URL).SendRaw(context.Background(), "s1", json.RawMessage(`{not json`)); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
