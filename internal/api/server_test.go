package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"va-tasks/internal/auth"
	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/suggest"
	"va-tasks/pkg/task"
)

var fixedNow = time.Date(2026, 4, 1, 14, 30, 0, 0, time.UTC)

type fixture struct {
	srv    *Server
	tasks  *task.MemStore
	events *eventgraph.Bus
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	tasks := task.NewMemStore()
	bus := eventgraph.NewBus(eventgraph.NewMemStore())
	engine := suggest.New(tasks, bus, zap.NewNop())
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return &fixture{srv: New(tasks, bus, engine, opts, zap.NewNop()), tasks: tasks, events: bus}
}

// do sends a request through the full handler chain and decodes a JSON
// response into out when out is non-nil.
func (f *fixture) do(t *testing.T, method, path string, body any, out any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (f *fixture) create(t *testing.T, titles ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		var created task.Task
		rec := f.do(t, "POST", "/api/tasks", map[string]any{"title": title}, &created)
		require.Equal(t, 201, rec.Code, rec.Body.String())
		ids = append(ids, created.ID)
	}
	return ids
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, Options{})

	var banner map[string]any
	rec := f.do(t, "GET", "/", nil, &banner)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "service": "task", "version": Version}, banner)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = f.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, 200, rec.Code)

	rec = f.do(t, "GET", "/nope", nil, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, "GET", "/health", nil, nil, requestIDHeader, "req-123")
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestCreateAndListTasks(t *testing.T) {
	f := newFixture(t, Options{})

	var created task.Task
	rec := f.do(t, "POST", "/api/tasks", map[string]any{"title": "Write CI and tests"}, &created)
	require.Equal(t, 201, rec.Code)
	assert.GreaterOrEqual(t, created.ID, int64(1))
	assert.Equal(t, "Write CI and tests", created.Title)
	assert.Equal(t, task.StatusInbox, created.Status)

	var items []task.Task
	rec = f.do(t, "GET", "/api/tasks", nil, &items)
	require.Equal(t, 200, rec.Code)
	require.Len(t, items, 1)
	assert.Equal(t, "Write CI and tests", items[0].Title)

	var got task.Task
	rec = f.do(t, "GET", "/api/tasks/1", nil, &got)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, created.ID, got.ID)

	events, err := f.events.ByType(t.Context(), EventTaskCreated, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestTaskErrors(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing title", "POST", "/api/tasks", map[string]any{"title": "  "}, 400},
		{"unknown status", "POST", "/api/tasks", map[string]any{"title": "x", "status": "archived"}, 400},
		{"unknown field", "POST", "/api/tasks", map[string]any{"title": "x", "colour": "red"}, 400},
		{"bad id", "GET", "/api/tasks/abc", nil, 400},
		{"missing task", "GET", "/api/tasks/99", nil, 404},
		{"patch missing", "PATCH", "/api/tasks/99", map[string]any{"notes": "n"}, 404},
		{"delete missing", "DELETE", "/api/tasks/99", nil, 404},
		{"list bad status", "GET", "/api/tasks?status=archived", nil, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			rec := f.do(t, tt.method, tt.path, tt.body, &body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	f := newFixture(t, Options{})
	ids := f.create(t, "Draft report")

	var updated task.Task
	rec := f.do(t, "PATCH", "/api/tasks/1", map[string]any{"status": "done", "project": "Q3"}, &updated)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, task.StatusDone, updated.Status)
	assert.Equal(t, "Q3", updated.Project)

	var open []task.Task
	f.do(t, "GET", "/api/tasks?open=true", nil, &open)
	assert.Empty(t, open)

	var deleted map[string]bool
	rec = f.do(t, "DELETE", "/api/tasks/1", nil, &deleted)
	require.Equal(t, 200, rec.Code)
	assert.True(t, deleted["deleted"])

	_, err := f.tasks.Get(t.Context(), ids[0])
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestIngest(t *testing.T) {
	f := newFixture(t, Options{})

	var created task.Task
	rec := f.do(t, "POST", "/api/ingest", map[string]any{
		"text":  "Email Joel re SOW tomorrow 4pm #Acme @email +Joel p1",
		"links": []string{"https://example.com/sow"},
	}, &created)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	assert.Equal(t, "Email Joel re SOW", created.Title)
	assert.Equal(t, "P1", created.Priority)
	assert.Equal(t, "Acme", created.Project)
	assert.Equal(t, []string{"email"}, created.Context)
	assert.Equal(t, []string{"Joel"}, created.People)
	assert.Equal(t, []string{"https://example.com/sow"}, created.Links)
	assert.Equal(t, "api", created.Channel)
	require.NotNil(t, created.Due)
	assert.True(t, time.Date(2026, 4, 2, 16, 0, 0, 0, time.UTC).Equal(*created.Due), "due %v", created.Due)

	rec = f.do(t, "POST", "/api/ingest", map[string]any{"text": "Call mom", "channel": "sms"}, &created)
	require.Equal(t, 201, rec.Code)
	assert.Equal(t, "sms", created.Channel)

	rec = f.do(t, "POST", "/api/ingest", map[string]any{"text": "   "}, nil)
	assert.Equal(t, 400, rec.Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Options{})
	f.create(t, "a", "b")
	f.do(t, "PATCH", "/api/tasks/1", map[string]any{"status": "done"}, nil)

	var status map[string]float64
	rec := f.do(t, "GET", "/api/status", nil, &status)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 2.0, status["tasks"])
	assert.Equal(t, 1.0, status["open_tasks"])
	assert.Equal(t, 3.0, status["events"])
}

func TestAuthGuardsMutatingRoutes(t *testing.T) {
	secret := []byte("s3cret")
	f := newFixture(t, Options{JWTSecret: secret})

	rec := f.do(t, "POST", "/api/tasks", map[string]any{"title": "x"}, nil)
	assert.Equal(t, 401, rec.Code)

	rec = f.do(t, "GET", "/api/tasks", nil, nil)
	assert.Equal(t, 200, rec.Code)

	token, err := auth.GenerateToken(secret, "cli", time.Hour)
	require.NoError(t, err)
	rec = f.do(t, "POST", "/api/tasks", map[string]any{"title": "x"}, nil, "Authorization", "Bearer "+token)
	assert.Equal(t, 201, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{CORSOrigins: []string{"http://app.test"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
