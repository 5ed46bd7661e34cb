package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MiKapsDev/Lion-City/internal/groups"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// ListGroups handles GET /api/groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	list := h.Groups.List()
	if list == nil {
		list = []groups.Group{}
	}
	server.JSON(w, http.StatusOK, list)
}

// GetGroup handles GET /api/groups/{id}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.Groups.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeGroupError(w, err)
		return
	}
	server.JSON(w, http.StatusOK, g)
}

// CreateGroup handles POST /api/groups. Members may be given as a list or
// as one comma separated string.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		Members    []string `json:"members"`
		MemberList string   `json:"member_list"`
	}
	if !decode(w, r, &req) {
		return
	}
	members := req.Members
	if strings.TrimSpace(req.MemberList) != "" {
		members = append(members, groups.SplitMembers(req.MemberList)...)
	}

	g, err := h.Groups.Create(req.Name, members)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	server.JSON(w, http.StatusCreated, g)
}

// AddMember handles POST /api/groups/{id}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	g, err := h.Groups.AddMember(chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	server.JSON(w, http.StatusOK, g)
}

func writeGroupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, groups.ErrNotFound):
		server.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, groups.ErrDuplicateMember):
		server.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, groups.ErrInvalidGroup), errors.Is(err, groups.ErrInvalidEmail):
		server.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		server.Error(w, http.StatusInternalServerError, err.Error())
	}
}
