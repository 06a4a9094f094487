package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]interface{}
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	reply    func(r recordedRequest) (int, string)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, APIKey: r.Header.Get("X-API-Key")}
	data, _ := io.ReadAll(r.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	status, body := http.StatusOK, `{"ok":true}`
	if f.reply != nil {
		status, body = f.reply(rec)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (f *fakeServer) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := run(t, srv, "analyze", "lead-1", "lead-2")
	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/analyze", req.Path)
	assert.Equal(t, []interface{}{"lead-1", "lead-2"}, req.Body["leadIds"])

	_, err = run(t, srv, "analyze", "--all", "--days-back", "7")
	require.NoError(t, err)
	req = fake.last()
	assert.Equal(t, "all_unanalyzed", req.Body["mode"])
	assert.EqualValues(t, 7, req.Body["daysBack"])

	_, err = run(t, srv, "analyze")
	assert.Error(t, err)
}

func TestAnalysesListCommand(t *testing.T) {
	fake := &fakeServer{reply: func(recordedRequest) (int, string) { return http.StatusOK, `[]` }}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out, err := run(t, srv, "--api-key", "k1", "analyses", "list", "--status", "pending_review", "--max-score", "49")
	require.NoError(t, err)
	assert.Contains(t, out, "[]")
	req := fake.last()
	assert.Equal(t, "/api/v1/analyses", req.Path)
	assert.Equal(t, "maxScore=49&status=pending_review", req.Query)
	assert.Equal(t, "k1", req.APIKey)
}

func TestAgreeCommand_ExpectedVersion(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := run(t, srv, "analyses", "agree", "an-1", "--feedback", "fair", "--expected-version", "2")
	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, "/api/v1/analyses/an-1/agree", req.Path)
	assert.Equal(t, "fair", req.Body["feedback"])
	assert.EqualValues(t, 2, req.Body["expectedVersion"])

	_, err = run(t, srv, "analyses", "dismiss", "an-2")
	require.NoError(t, err)
	_, sent := fake.last().Body["expectedVersion"]
	assert.False(t, sent)
}

func TestServerErrorIsReturned(t *testing.T) {
	fake := &fakeServer{reply: func(recordedRequest) (int, string) {
		return http.StatusConflict, `{"error":"analysis is closed"}`
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := run(t, srv, "analyses", "dismiss", "an-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "analysis is closed")
}

func TestTeachCommands_KeepDialogueState(t *testing.T) {
	turns := 0
	fake := &fakeServer{reply: func(r recordedRequest) (int, string) {
		if r.Body["action"] == "save_learning" {
			return http.StatusOK, `{"learningId":"l-1","confirmationMessage":"saved"}`
		}
		turns += 2
		history := make([]map[string]string, 0, turns)
		for i := 0; i < turns; i++ {
			role := "human"
			if i%2 == 1 {
				role = "agent"
			}
			history = append(history, map[string]string{"role": role, "message": "m"})
		}
		data, _ := json.Marshal(map[string]interface{}{"agentMessage": "why?", "dialogueHistory": history})
		return http.StatusOK, string(data)
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	state := filepath.Join(t.TempDir(), "dialogue.json")

	_, err := run(t, srv, "teach", "--state", state, "start", "an-1", "--issue", "1", "--message", "It was fine")
	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, "start_teaching", req.Body["action"])
	assert.EqualValues(t, 1, req.Body["issueIndex"])
	assert.Empty(t, req.Body["dialogueHistory"])

	st, err := loadState(state)
	require.NoError(t, err)
	assert.Equal(t, "an-1", st.AnalysisID)
	assert.Len(t, st.DialogueHistory, 2)

	_, err = run(t, srv, "teach", "--state", state, "continue", "--message", "They asked for it")
	require.NoError(t, err)
	req = fake.last()
	assert.Equal(t, "continue_dialogue", req.Body["action"])
	assert.Len(t, req.Body["dialogueHistory"], 2)

	_, err = run(t, srv, "teach", "--state", state, "save", "--message", "Exactly")
	require.NoError(t, err)
	req = fake.last()
	assert.Equal(t, "save_learning", req.Body["action"])
	assert.Len(t, req.Body["dialogueHistory"], 4)
	assert.Equal(t, "Exactly", req.Body["humanMessage"])

	_, err = os.Stat(state)
	assert.True(t, os.IsNotExist(err))

	_, err = run(t, srv, "teach", "--state", state, "continue", "--message", "again")
	assert.Error(t, err)
}

func TestLearningsOutcomeCommand(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := run(t, srv, "learnings", "outcome", "l-1", "incorrect")
	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, "/api/v1/learnings/l-1/outcome", req.Path)
	assert.Equal(t, false, req.Body["correct"])

	_, err = run(t, srv, "learnings", "outcome", "l-1", "sometimes")
	assert.Error(t, err)
}

func TestParseOutcome(t *testing.T) {
	for in, want := range map[string]bool{"correct": true, "wrong": false, "true": true, "0": false} {
		got, err := parseOutcome(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
