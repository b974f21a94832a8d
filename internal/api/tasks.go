package api

import (
	"fmt"
	"net/http"
	"strconv"

	"va-tasks/pkg/task"
)

const defaultTaskLimit = 100

// Journal event types written by the task routes.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	f := task.Filter{
		Status: task.Status(r.URL.Query().Get("status")),
		Open:   r.URL.Query().Get("open") == "true",
		Limit:  queryInt(r, "limit", defaultTaskLimit),
		Offset: queryInt(r, "offset", 0),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, 400, fmt.Sprintf("unknown status %q", f.Status))
		return
	}
	tasks, err := s.tasks.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t.ID = 0
	created, err := task.Create(r.Context(), s.tasks, &t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.journal(r, EventTaskCreated, map[string]any{"task_id": created.ID, "title": created.Title})
	writeJSON(w, 201, created)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p task.Patch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := task.Update(r.Context(), s.tasks, id, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.journal(r, EventTaskUpdated, map[string]any{"task_id": id, "status": string(t.Status)})
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.journal(r, EventTaskDeleted, map[string]any{"task_id": id})
	writeJSON(w, 200, map[string]bool{"deleted": true})
}

// pathID parses the {id} wildcard, answering 400 itself when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, 400, fmt.Sprintf("invalid task id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}
