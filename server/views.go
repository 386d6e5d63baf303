// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (server *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := server.catalog.ListViews(ctx, mux.Vars(r)["owner"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	views := []map[string]any{}
	for _, entry := range entries {
		doc, err := asMap(entry)
		if err != nil {
			server.errorResponse(w, err)
			return
		}
		views = append(views, doc)
	}
	server.jsonResponse(w, http.StatusOK, views)
}

func (server *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	entry, err := server.catalog.GetView(ctx, vars["owner"], vars["view"])
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
