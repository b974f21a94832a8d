package api

import (
	"fmt"
	"net/http"
	"strconv"

	"va-tasks/pkg/suggest"
)

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.suggestOptions(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	out, err := s.engine.Suggest(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, out)
}

func (s *Server) handleSuggestionApply(w http.ResponseWriter, r *http.Request) {
	var req suggest.ApplyRequest
	if err := decodeEcho(r, &req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.Apply(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "result": res})
}

func (s *Server) handleSuggestionFeedback(w http.ResponseWriter, r *http.Request) {
	var req suggest.FeedbackRequest
	if err := decodeEcho(r, &req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.Feedback(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "touched": res.Touched})
}

// suggestOptions overlays the query string on the configured defaults.
func (s *Server) suggestOptions(r *http.Request) (suggest.Options, error) {
	opts := s.opts.Suggest
	q := r.URL.Query()
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid threshold %q", v)
		}
		opts.Threshold = f
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid top_k %q", v)
		}
		opts.TopK = n
	}
	if v := q.Get("include_split"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid include_split %q", v)
		}
		opts.IncludeSplit = b
	}
	return opts, nil
}
