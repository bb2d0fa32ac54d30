package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.io/infrasutra/holomail/internal/mailbox"
	"github.io/infrasutra/holomail/internal/pagination"
	"github.io/infrasutra/holomail/internal/schema"
)

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := pagination.Parse(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := mailbox.EmailFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Folder: q.Get("folder"),
		Tag:    q.Get("tag"),
	}
	if raw := q.Get("is_read"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid is_read")
			return
		}
		filter.IsRead = &isRead
	}
	filter.Page, filter.Limit = params.Page, params.Limit

	page, err := s.service.ListEmails(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, "list emails", err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateEmail(w http.ResponseWriter, r *http.Request) {
	var payload mailbox.EmailInput
	if !s.readValidated(w, r, schema.EmailCreate, &payload) {
		return
	}
	created, err := s.service.CreateEmail(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, "create email", err)
		return
	}
	s.respondJSON(w, http.StatusOK, created)
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var payload mailbox.BulkRequest
	if !s.readValidated(w, r, schema.BulkAction, &payload) {
		return
	}
	result, err := s.service.BulkUpdate(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, "update emails", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.service.ListTags(r.Context())
	if err != nil {
		s.respondServiceError(w, "list tags", err)
		return
	}
	s.respondJSON(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var payload mailbox.TagInput
	if !s.readValidated(w, r, schema.TagCreate, &payload) {
		return
	}
	id, err := s.service.CreateTag(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, "create tag", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.service.ListFolders(r.Context())
	if err != nil {
		s.respondServiceError(w, "list folders", err)
		return
	}
	s.respondJSON(w, http.StatusOK, folders)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var payload mailbox.FolderInput
	if !s.readValidated(w, r, schema.FolderCreate, &payload) {
		return
	}
	id, err := s.service.CreateFolder(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, "create folder", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.Parse(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.service.ListEvents(r.Context(), params.Limit)
	if err != nil {
		s.respondServiceError(w, "list events", err)
		return
	}
	s.respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var payload mailbox.EventInput
	if !s.readValidated(w, r, schema.EventCreate, &payload) {
		return
	}
	id, err := s.service.CreateEvent(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, "create event", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id})
}
