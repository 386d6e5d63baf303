// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storj.io/common/uuid"

	"github.com/mabel-dev/tarchia/catalog"
)

// CreateOwnerRequest is the body of POST /v1/owners.
type CreateOwnerRequest struct {
	Name        string            `json:"name"`
	Type        catalog.OwnerType `json:"type"`
	Steward     string            `json:"steward"`
	Description string            `json:"description"`
	Memberships []string          `json:"memberships"`
}

func (server *Server) handleCreateOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request CreateOwnerRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}

	if _, err := server.catalog.GetOwner(ctx, request.Name); err == nil {
		server.errorResponse(w, catalog.ErrAlreadyExists.New("%s", request.Name))
		return
	} else if !catalog.ErrOwnerNotFound.Has(err) {
		server.errorResponse(w, err)
		return
	}

	id, err := uuid.New()
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	entry := &catalog.OwnerEntry{
		Name:        request.Name,
		OwnerID:     id.String(),
		Type:        request.Type,
		Steward:     request.Steward,
		Description: request.Description,
		Memberships: request.Memberships,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := entry.Validate(); err != nil {
		server.errorResponse(w, err)
		return
	}
	if err := server.catalog.UpdateOwner(ctx, entry); err != nil {
		server.errorResponse(w, err)
		return
	}

	server.log.Info("owner created", zap.String("owner", entry.Name))
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Owner Created",
		"owner":   entry.Name,
	})
}

func (server *Server) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entry, err := server.catalog.GetOwner(ctx, mux.Vars(r)["owner"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	doc, err := asMap(entry)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, doc)
}

func (server *Server) handlePatchOwnerAttribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	owner, attribute := vars["owner"], vars["attribute"]

	// only stewardship can be reassigned over the API
	if attribute != "steward" {
		server.jsonResponse(w, http.StatusMethodNotAllowed, message{
			"message": "Attribute " + attribute + " cannot be PATCHed.",
		})
		return
	}

	var request struct {
		Value string `json:"value"`
	}
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}

	entry, err := server.catalog.GetOwner(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	entry.Steward = request.Value
	if err := server.catalog.UpdateOwner(ctx, entry); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message":   "Owner Updated",
		"owner":     owner,
		"attribute": attribute,
	})
}

func (server *Server) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]

	entry, err := server.catalog.GetOwner(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	tables, err := server.catalog.ListTables(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	if len(tables) > 0 {
		server.jsonResponse(w, http.StatusConflict, message{
			"message": "Cannot delete an owner with active tables.",
		})
		return
	}

	if err := server.catalog.DeleteOwner(ctx, entry.OwnerID); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.log.Info("owner deleted", zap.String("owner", owner))
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Owner Deleted",
		"owner":   owner,
	})
}
