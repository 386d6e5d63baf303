// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"storj.io/common/uuid"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/commitlog"
	"github.com/mabel-dev/tarchia/eventing"
	"github.com/mabel-dev/tarchia/manifest"
	"github.com/mabel-dev/tarchia/transaction"
)

func (server *Server) jsonResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		server.log.Warn("failed to write response", zap.Error(err))
	}
}

// message is the shape of all status-only responses.
type message map[string]any

// errorResponse maps an error to its HTTP status. Unclassified errors are
// logged with a correlation id; the client only sees the id.
func (server *Server) errorResponse(w http.ResponseWriter, err error) {
	switch {
	case catalog.ErrDataEntry.Has(err),
		catalog.ErrInvalidSchemaTransition.Has(err),
		manifest.ErrInvalidFilter.Has(err),
		manifest.ErrData.Has(err),
		eventing.Error.Has(err):
		server.jsonResponse(w, http.StatusUnprocessableEntity, message{
			"fields":  nil,
			"message": err.Error(),
		})

	case catalog.ErrTableNotFound.Has(err),
		catalog.ErrOwnerNotFound.Has(err),
		catalog.ErrViewNotFound.Has(err),
		commitlog.ErrCommitNotFound.Has(err),
		commitlog.ErrTableHasNoData.Has(err):
		server.jsonResponse(w, http.StatusNotFound, message{"message": err.Error()})

	case catalog.ErrAlreadyExists.Has(err):
		server.jsonResponse(w, http.StatusConflict, message{"message": err.Error()})

	case transaction.Error.Has(err):
		server.jsonResponse(w, http.StatusBadRequest, message{"message": err.Error()})

	default:
		correlation, idErr := uuid.New()
		id := correlation.String()
		if idErr != nil {
			id = "unknown"
		}
		server.log.Error("unexpected error",
			zap.String("correlation", id),
			zap.Error(err))
		server.jsonResponse(w, http.StatusInternalServerError, message{
			"message": "Unexpected Error (" + id + ")",
		})
	}
}

// decodeBody parses the JSON request body into out.
func (server *Server) decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return catalog.ErrDataEntry.New("invalid request body: %v", err)
	}
	return nil
}
