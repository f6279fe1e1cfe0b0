package reporters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/spectree"
)

// Remote posts a run summary to an external collection service and
// serves a local status endpoint reporters/CI dashboards can poll while
// the run is in flight. The auth token is fetched once in OnBegin and
// cached for the run's lifetime — resolving the design's Open Question
// about the upstream reporter fetching it lazily per artifact without
// awaiting the call.
type Remote struct {
	Endpoint   string
	TokenURL   string
	RunID      string
	StatusPort int
	Log        rlog.Logger
	Client     *http.Client

	mu        sync.Mutex
	token     string
	artifacts []string // initialized empty, never left nil, per the design's other Open Question
	server    *http.Server
}

func NewRemote(endpoint, tokenURL string, log rlog.Logger) *Remote {
	return &Remote{
		Endpoint:  endpoint,
		TokenURL:  tokenURL,
		RunID:     uuid.NewString(),
		Log:       log,
		Client:    &http.Client{Timeout: 10 * time.Second},
		artifacts: []string{},
	}
}

func (r *Remote) OnBegin(root *spectree.Tree, tests []*spectree.Test) {
	token, err := r.fetchToken()
	if err != nil {
		r.Log.Error("remote reporter: fetching token failed, artifact upload disabled", "error", err)
		return
	}
	r.mu.Lock()
	r.token = token
	r.mu.Unlock()

	if r.StatusPort > 0 {
		r.startStatusServer()
	}
}

// fetchToken makes the blocking HTTPS call and caches the result —
// deliberately synchronous and awaited, unlike the upstream reporter's
// fire-and-forget call.
func (r *Remote) fetchToken() (string, error) {
	if r.TokenURL == "" {
		return "", nil
	}
	req, err := http.NewRequest(http.MethodPost, r.TokenURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	return body.Token, nil
}

func (r *Remote) startStatusServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", r.handleStatus)

	handler := cors.New(cors.Options{AllowedMethods: []string{http.MethodGet}}).Handler(mux)
	r.server = &http.Server{Addr: fmt.Sprintf(":%d", r.StatusPort), Handler: handler}
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.Log.Error("remote reporter: status server stopped", "error", err)
		}
	}()
}

func (r *Remote) handleStatus(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	artifacts := append([]string{}, r.artifacts...)
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"runId":     r.RunID,
		"artifacts": artifacts,
	})
}

func (r *Remote) recordArtifact(path string) {
	r.mu.Lock()
	r.artifacts = append(r.artifacts, path)
	r.mu.Unlock()
}

func (r *Remote) OnTestBegin(test *spectree.Test)            {}
func (r *Remote) OnStdout(test *spectree.Test, chunk string) {}
func (r *Remote) OnStderr(test *spectree.Test, chunk string) {}
func (r *Remote) OnTimeout()                                 {}

func (r *Remote) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	if result.Error != nil {
		r.recordArtifact(fmt.Sprintf("test-%d-error.log", test.ID))
	}
}

func (r *Remote) OnEnd(summary Summary) {
	if r.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.server.Shutdown(ctx)
	}
	if r.Endpoint == "" {
		return
	}

	r.mu.Lock()
	token := r.token
	r.mu.Unlock()

	payload, err := json.Marshal(map[string]any{
		"runId":   r.RunID,
		"result":  summary.Result,
		"passed":  summary.Passed,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
		"flaky":   summary.Flaky,
	})
	if err != nil {
		r.Log.Error("remote reporter: marshaling summary failed", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, r.Endpoint, bytes.NewReader(payload))
	if err != nil {
		r.Log.Error("remote reporter: building request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		r.Log.Error("remote reporter: posting summary failed", "error", err)
		return
	}
	defer resp.Body.Close()
}

var _ Reporter = (*Remote)(nil)
