// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/task"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type taskResponse struct {
	Message string     `json:"message"`
	Task    *task.Task `json:"task"`
}

// taskID parses the {id} path variable. Malformed ids are reported as not
// found, the same as ids owned by someone else.
func taskID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.Code(task.CodeNotFound).With("task_id", raw).Errorf("task not found")
	}
	return id, nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	tasks, err := s.tasks.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, _ := IdentityFromContext(r.Context())
	t, err := s.tasks.Create(r.Context(), id.UserID, req.Title, req.Description)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Message: task.MsgCreated, Task: t})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	tid, err := taskID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var patch task.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, _ := IdentityFromContext(r.Context())
	t, err := s.tasks.Update(r.Context(), id.UserID, tid, patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Message: task.MsgUpdated, Task: t})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	tid, err := taskID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, _ := IdentityFromContext(r.Context())
	if err := s.tasks.Delete(r.Context(), id.UserID, tid); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: task.MsgDeleted})
}
