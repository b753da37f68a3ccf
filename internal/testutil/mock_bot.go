package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/soundbridgehq/botbridge/internal/models"
)

// MockBotServer is a mock bot process exposing the status and control
// endpoints the liveness client talks to.
type MockBotServer struct {
	Server *httptest.Server

	mu           sync.Mutex
	status       models.BotStatus
	failing      bool
	statusCalls  int
	controlCalls []string
}

// NewMockBotServer creates a mock bot reporting the given status.
func NewMockBotServer(status models.BotStatus) *MockBotServer {
	mbs := &MockBotServer{status: status}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		mbs.mu.Lock()
		defer mbs.mu.Unlock()
		mbs.statusCalls++

		if mbs.failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mbs.status)
	})
	mux.HandleFunc("POST /control/{action}", func(w http.ResponseWriter, r *http.Request) {
		mbs.mu.Lock()
		defer mbs.mu.Unlock()
		mbs.controlCalls = append(mbs.controlCalls, r.PathValue("action"))

		if mbs.failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mbs.Server = httptest.NewServer(mux)
	return mbs
}

// StatusURL returns the mock's status endpoint URL.
func (m *MockBotServer) StatusURL() string {
	return m.Server.URL + "/status"
}

// SetStatus replaces the reported status.
func (m *MockBotServer) SetStatus(status models.BotStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// SetFailing toggles failure mode; while failing every request gets a 503.
func (m *MockBotServer) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// StatusCalls reports how many status requests were served.
func (m *MockBotServer) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// ControlCalls reports the control actions received, in order.
func (m *MockBotServer) ControlCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.controlCalls...)
}

// Close shuts the mock server down.
func (m *MockBotServer) Close() {
	m.Server.Close()
}
