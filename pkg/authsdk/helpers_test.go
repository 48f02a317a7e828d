package authsdk

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakePlatform is a scripted stand-in for the platform's auth endpoints.
type fakePlatform struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]http.HandlerFunc
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()

	f := &fakePlatform{
		calls:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.URL.Path]++
		h := f.handlers[r.URL.Path]
		f.mu.Unlock()

		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlatform) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

// respond registers a handler that always answers with status and body.
func (f *fakePlatform) respond(path string, status int, body any) {
	f.handle(path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

func (f *fakePlatform) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakePlatform) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingObserver collects every observed auth outcome.
type recordingObserver struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (o *recordingObserver) ObserveAuth(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

func newTestManager(t *testing.T, f *fakePlatform, opts ...ClientOption) (*Manager, *MemoryPersister) {
	t.Helper()

	opts = append([]ClientOption{WithLogger(discardLogger())}, opts...)
	client := NewSDKClient(f.srv.URL, opts...)
	persister := NewMemoryPersister()
	session := NewSessionStore(persister, WithSessionLogger(discardLogger()))
	return NewManager(client, session), persister
}

func dashboardUser() *UserProfile {
	return &UserProfile{
		ID:    "u-1",
		Name:  "Asha",
		Email: "a@x.com",
		Role: Role{
			Name: "admin",
			Permissions: []PermissionGrant{
				{SectionName: "Dashboard", CanRead: true},
				{SectionName: "Exams", CanCreate: true, CanRead: true, CanUpdate: true},
			},
		},
	}
}
