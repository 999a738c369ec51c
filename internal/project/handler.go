package project

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/internal/transport"
)

const uploadField = "file"

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(svc ServiceAPI, maxUploadBytes int64, lg *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = internal.DefaultUploadBytes
	}
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, ok := store.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrNotAuthenticated)
		return nil, false
	}
	return sess, true
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return 0, false
	}
	return id, true
}

// ListProjects handles GET /projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	list, err := h.Service.List(r.Context(), sess)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, list)
}

// GetSummary handles GET /projects/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.Summary(r.Context(), sess)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// RefreshProjects handles POST /projects/refresh
func (h *Handler) RefreshProjects(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Service.Refresh(r.Context(), sess); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProject handles GET /projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	limit, err := h.QueryInt(r, "limit")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	detail, err := h.Service.Detail(r.Context(), sess, id, limit)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, detail)
}

// GetRows handles GET /projects/{id}/rows
func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	limit, err := h.QueryInt(r, "limit")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	page, err := h.Service.Rows(r.Context(), sess, id, limit)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// CreateProject handles POST /projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var dto CreateProjectDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	created, err := h.Service.Create(r.Context(), sess, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// UpdateProject handles PATCH /projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var dto UpdateProjectDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	updated, err := h.Service.Update(r.Context(), sess, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// DeleteProject handles DELETE /projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), sess, id); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadData handles POST /projects/{id}/upload as multipart/form-data with
// the document in the "file" field.
func (h *Handler) UploadData(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.WriteAppError(w, r, h.uploadError(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.WriteAppError(w, r, h.uploadError(err))
		return
	}

	result, err := h.Service.Upload(r.Context(), sess, id, header.Filename, data)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		appErr := internal.NewMalformedUploadError(fmt.Sprintf("upload exceeds %d bytes", h.MaxUploadBytes), err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	return internal.NewMalformedUploadError(fmt.Sprintf("expected a multipart %q field", uploadField), err)
}

// SelectColumns handles PUT /projects/{id}/columns
func (h *Handler) SelectColumns(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var dto SelectColumnsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	updated, err := h.Service.SelectColumns(r.Context(), sess, id, dto.Columns)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// ListAssignments handles GET /projects/{id}/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	assignments, err := h.Service.ListAssignments(r.Context(), sess, id)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

// AddAssignment handles POST /projects/{id}/assignments
func (h *Handler) AddAssignment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var dto AddAssignmentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	created, err := h.Service.AddAssignment(r.Context(), sess, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// RemoveAssignment handles DELETE /projects/{id}/assignments/{assignmentID}
func (h *Handler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	assignmentID, err := h.PathInt64(r, "assignmentID")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := h.Service.RemoveAssignment(r.Context(), sess, id, assignmentID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
