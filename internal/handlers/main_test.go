package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/english-buddy/internal/handlers"
	"github.com/MegaGrindStone/english-buddy/internal/models"
)

type mockLLM struct {
	responses []string
	// err is yielded before any response when setupErr is set, after all responses otherwise.
	err      error
	setupErr bool

	calls    int
	messages []models.Message
}

var testPage = handlers.Page{
	Title:         "English Adventure Buddy",
	Suggestions:   []string{"Spell 'friend'", "Homework tips"},
	HistoryTitles: []string{"Vocabulary Voyage"},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewMain(t *testing.T) {
	if _, err := handlers.NewMain(&mockLLM{}, testPage, discardLogger()); err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}
}

func TestHandleHome(t *testing.T) {
	main, err := handlers.NewMain(&mockLLM{}, testPage, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		url        string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "Home page",
			method:     http.MethodGet,
			url:        "/",
			wantStatus: http.StatusOK,
			wantBody: []string{
				"English Adventure Buddy",
				"Spell &#39;friend&#39;",
				"Homework tips",
				"Vocabulary Voyage",
				"<strong>English Adventure Buddy</strong>",
				"/static/chat.js",
			},
		},
		{
			name:       "Unknown path",
			method:     http.MethodGet,
			url:        "/nope",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Invalid method",
			method:     http.MethodPost,
			url:        "/",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			w := httptest.NewRecorder()

			main.HandleHome(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleHome() status = %v, want %v", w.Code, tt.wantStatus)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("HandleHome() body = %v, want to contain %v", w.Body.String(), want)
				}
			}
		})
	}
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		llm        *mockLLM
		wantStatus int
		wantBody   string
		wantError  string
		wantCalls  int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			llm:        &mockLLM{},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Missing messages",
			method:     http.MethodPost,
			body:       `{}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid or missing messages in request body",
		},
		{
			name:       "Null messages",
			method:     http.MethodPost,
			body:       `{"messages":null}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid or missing messages in request body",
		},
		{
			name:       "Messages is a string",
			method:     http.MethodPost,
			body:       `{"messages":"Hi"}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid or missing messages in request body",
		},
		{
			name:       "Messages is an object",
			method:     http.MethodPost,
			body:       `{"messages":{"role":"user","content":"Hi"}}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid or missing messages in request body",
		},
		{
			name:       "Malformed body",
			method:     http.MethodPost,
			body:       `{"messages":[`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid request body",
		},
		{
			name:       "Invalid role",
			method:     http.MethodPost,
			body:       `{"messages":[{"role":"system","content":"Hi"}]}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "invalid role",
		},
		{
			name:       "Missing role",
			method:     http.MethodPost,
			body:       `{"messages":[{"content":"Hi"}]}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Invalid message at index 0",
		},
		{
			name:       "Provider rejects the call",
			method:     http.MethodPost,
			body:       `{"messages":[{"role":"user","content":"Hi"}]}`,
			llm:        &mockLLM{err: errors.New("anthropic error authentication_error: invalid x-api-key"), setupErr: true},
			wantStatus: http.StatusInternalServerError,
			wantError:  "anthropic error authentication_error: invalid x-api-key",
			wantCalls:  1,
		},
		{
			name:       "Streamed reply",
			method:     http.MethodPost,
			body:       `{"messages":[{"id":"1","role":"user","content":"Hi"}]}`,
			llm:        &mockLLM{responses: []string{"Hello", " there!"}},
			wantStatus: http.StatusOK,
			wantBody:   "data: {\"text\":\"Hello\"}\n\ndata: {\"text\":\" there!\"}\n\ndata: [DONE]\n\n",
			wantCalls:  1,
		},
		{
			name:       "Empty reply",
			method:     http.MethodPost,
			body:       `{"messages":[]}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusOK,
			wantBody:   "data: [DONE]\n\n",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, err := handlers.NewMain(tt.llm, testPage, discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(tt.method, "/api/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			main.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.llm.calls != tt.wantCalls {
				t.Errorf("HandleChat() llm calls = %v, want %v", tt.llm.calls, tt.wantCalls)
			}

			if tt.wantError != "" {
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("HandleChat() content type = %q, want application/json", ct)
				}
				var res struct {
					Error string `json:"error"`
				}
				if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
					t.Fatalf("failed to decode error body: %v", err)
				}
				if !strings.Contains(res.Error, tt.wantError) {
					t.Errorf("HandleChat() error = %q, want to contain %q", res.Error, tt.wantError)
				}
				return
			}

			if tt.wantBody == "" {
				return
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("HandleChat() body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			headers := map[string]string{
				"Content-Type":  "text/event-stream",
				"Cache-Control": "no-cache",
				"Connection":    "keep-alive",
			}
			for k, v := range headers {
				if got := w.Header().Get(k); got != v {
					t.Errorf("HandleChat() header %s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestHandleChatStripsIDs(t *testing.T) {
	llm := &mockLLM{responses: []string{"ok"}}
	main, err := handlers.NewMain(llm, testPage, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	body := `{"messages":[
		{"id":"1","role":"user","content":"Hi"},
		{"id":"2","role":"assistant","content":"Hello there!"},
		{"id":"3","role":"user","content":"Spell 'friend'"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	main.HandleChat(w, req)

	want := []models.Message{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello there!"},
		{Role: models.RoleUser, Content: "Spell 'friend'"},
	}
	if len(llm.messages) != len(want) {
		t.Fatalf("llm messages = %+v, want %+v", llm.messages, want)
	}
	for i := range want {
		if llm.messages[i] != want[i] {
			t.Errorf("llm message %d = %+v, want %+v", i, llm.messages[i], want[i])
		}
	}
}

func TestHandleChatMidStreamFailure(t *testing.T) {
	llm := &mockLLM{responses: []string{"Hel"}, err: errors.New("overloaded")}
	main, err := handlers.NewMain(llm, testPage, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(main.HandleChat))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Errorf("reading an aborted stream should fail, got body %q", body)
	}
	if !strings.Contains(string(body), `data: {"text":"Hel"}`) {
		t.Errorf("body = %q, want the frames sent before the failure", body)
	}
	if strings.Contains(string(body), "[DONE]") {
		t.Errorf("body = %q, an aborted stream must not carry the sentinel", body)
	}
}

func (m *mockLLM) Chat(_ context.Context, messages []models.Message) iter.Seq2[string, error] {
	m.calls++
	m.messages = messages
	return func(yield func(string, error) bool) {
		if m.err != nil && m.setupErr {
			yield("", m.err)
			return
		}
		for _, resp := range m.responses {
			if !yield(resp, nil) {
				return
			}
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}
