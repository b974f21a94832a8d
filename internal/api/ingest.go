package api

import (
	"net/http"
	"strings"

	"va-tasks/pkg/quickentry"
	"va-tasks/pkg/task"
)

const defaultIngestChannel = "api"

type ingestRequest struct {
	Text    string   `json:"text"`
	Channel string   `json:"channel"`
	Links   []string `json:"links"`
}

// handleIngest turns one line of free text into a task.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, 400, "text is required")
		return
	}
	if req.Channel == "" {
		req.Channel = defaultIngestChannel
	}

	parsed := quickentry.Parse(req.Text, s.opts.Now(), s.opts.Location)
	created, err := task.Create(r.Context(), s.tasks, &task.Task{
		Title:    parsed.Title,
		Due:      parsed.Due,
		Priority: parsed.Priority,
		Project:  parsed.Project,
		Context:  parsed.Context,
		People:   parsed.People,
		Links:    req.Links,
		Channel:  req.Channel,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.journal(r, EventTaskCreated, map[string]any{"task_id": created.ID, "title": created.Title, "channel": created.Channel})
	writeJSON(w, 201, created)
}
