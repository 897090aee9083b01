package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
	"github.com/prn-tf/hermes-users/internal/service"
)

// UserHandler handles user CRUD requests.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes registers user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleSoftDelete)
		r.Delete("/{id}/hard", h.handleHardDelete)
	})
}

// createUserRequest is the JSON body of POST /users.
type createUserRequest struct {
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// handleCreate handles POST /users.
func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if ok := decodeBody(w, r, &req); !ok {
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleList handles GET /users. Only active users are returned.
func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListActive(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if users == nil {
		users = []*domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// handleGet handles GET /users/{id}. Soft-deleted records are reachable by
// ID, matching the listing/detail asymmetry the API documents.
func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdate handles PATCH /users/{id}.
func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var update domain.UserUpdate
	if ok := decodeBody(w, r, &update); !ok {
		return
	}

	user, err := h.users.Update(r.Context(), id, update)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleSoftDelete handles DELETE /users/{id}.
func (h *UserHandler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.users.SoftDelete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHardDelete handles DELETE /users/{id}/hard.
func (h *UserHandler) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.users.HardDelete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseID extracts the numeric {id} path parameter, writing a 400 envelope
// when it is not a valid integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(w, r, "id must be an integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into dst. Unknown fields are
// rejected, as is trailing content after the document.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		badRequest(w, r, "invalid request body: unexpected trailing content")
		return false
	}
	return true
}
