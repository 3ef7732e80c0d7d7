package harness

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// fakeEndpoint is a completion endpoint that replays canned answers.
type fakeEndpoint struct {
	mu      sync.Mutex
	answers []RemoteAnswer
	served  int
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.served >= len(f.answers) {
		f.mu.Unlock()
		http.Error(w, "no canned answer left", http.StatusGone)
		return
	}
	a := f.answers[f.served]
	f.served++
	f.mu.Unlock()

	if a.Status != 0 && (a.Status < 200 || a.Status > 299) {
		w.WriteHeader(a.Status)
		_, _ = w.Write([]byte(a.Body))
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": a.Content},
			},
		},
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// Served returns the number of answers used so far.
func (f *fakeEndpoint) Served() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served
}

// startEndpoint serves answers on a local HTTP server.
func startEndpoint(answers []RemoteAnswer) (*httptest.Server, *fakeEndpoint) {
	f := &fakeEndpoint{answers: answers}
	return httptest.NewServer(f), f
}
