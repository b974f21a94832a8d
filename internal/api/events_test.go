package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/suggest"
)

func TestEventListAndVerify(t *testing.T) {
	f := newFixture(t, Options{})
	ids := f.create(t, "Send weekly status report to Alice", "Send status report")
	rec := f.do(t, "POST", "/api/suggestions/feedback", map[string]any{
		"id": "2437625c3015", "type": "combine", "accepted": false, "task_ids": ids,
	}, nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	var recent []eventgraph.Event
	f.do(t, "GET", "/api/events?limit=10", nil, &recent)
	require.Len(t, recent, 3)
	assert.Equal(t, suggest.EventFeedback, recent[0].Type, "newest first")

	var created []eventgraph.Event
	f.do(t, "GET", "/api/events?type="+EventTaskCreated, nil, &created)
	assert.Len(t, created, 2)

	var one eventgraph.Event
	rec = f.do(t, "GET", "/api/events/"+created[0].ID, nil, &one)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, created[0].Hash, one.Hash)

	rec = f.do(t, "GET", "/api/events/no-such-id", nil, nil)
	assert.Equal(t, 404, rec.Code)

	var verify map[string]any
	f.do(t, "GET", "/api/events/verify", nil, &verify)
	assert.Equal(t, true, verify["ok"])
	assert.Equal(t, 3.0, verify["events"])
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, Options{})
	ts := httptest.NewServer(f.srv)
	defer ts.Close()
	client := ts.Client()
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events/stream?type="+EventTaskCreated, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Headers arrive after the subscription is registered.
	require.Equal(t, 1, f.events.Subscribers())
	f.create(t, "ignored by nothing")
	f.do(t, "PATCH", "/api/tasks/1", map[string]any{"notes": "filtered out"}, nil)
	f.create(t, "second")

	var got []eventgraph.Event
	scanner := bufio.NewScanner(resp.Body)
	for len(got) < 2 && scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e eventgraph.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventTaskCreated, got[0].Type)
	assert.Equal(t, EventTaskCreated, got[1].Type)
	assert.NotEqual(t, got[0].Hash, got[1].PrevHash, "the filtered update sits between them in the chain")

	cancel()
	resp.Body.Close()
	assert.Eventually(t, func() bool { return f.events.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
