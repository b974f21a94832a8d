package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// keepAlive is how often an idle event stream gets a comment line.
var keepAlive = 15 * time.Second

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)

	if t := r.URL.Query().Get("type"); t != "" {
		events, err := s.events.ByType(ctx, t, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, 200, events)
		return
	}

	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, events)
}

func (s *Server) handleEventGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, e)
}

func (s *Server) handleEventVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.events.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.events.VerifyChain(ctx); err != nil {
		writeJSON(w, 200, map[string]any{"ok": false, "events": n, "error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "events": n})
}

// handleEventStream pushes journal events to the client as server-sent
// events until the client disconnects. ?type=a,b narrows the stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	var types []string
	if v := r.URL.Query().Get("type"); v != "" {
		types = strings.Split(v, ",")
	}
	sub := s.events.Subscribe(types...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(200)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Warn("SSE encode", zap.String("event_id", e.ID), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
