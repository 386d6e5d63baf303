// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package server implements the REST API of the metadata catalog.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/common/errs2"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/commitlog"
	"github.com/mabel-dev/tarchia/eventing"
	"github.com/mabel-dev/tarchia/storage"
)

var (
	// Error is the default error class for the server package.
	Error = errs.Class("server")

	mon = monkit.Package()
)

const identifierPattern = `[A-Za-z_][A-Za-z0-9_]*`
const shaOrHeadPattern = `head|[a-f0-9]{64}`

// Config holds the HTTP server configuration.
type Config struct {
	Address   string `help:"address for the API server to listen on" default:":8080"`
	AuthToken string `help:"shared token required from non-local clients; empty disables the check" default:""`
}

// Server exposes the catalog, commit engine and event surface over HTTP.
type Server struct {
	log     *zap.Logger
	catalog catalog.Provider
	store   storage.Provider
	engine  *commitlog.Engine
	events  *eventing.Dispatcher
	config  Config

	Handler http.Handler
	server  http.Server
}

// New assembles the API server and its routes.
func New(log *zap.Logger, cat catalog.Provider, store storage.Provider, engine *commitlog.Engine, events *eventing.Dispatcher, config Config) *Server {
	server := &Server{
		log:     log,
		catalog: cat,
		store:   store,
		engine:  engine,
		events:  events,
		config:  config,
	}

	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()

	owner := "{owner:" + identifierPattern + "}"
	table := "{table:" + identifierPattern + "}"
	view := "{view:" + identifierPattern + "}"
	sha := "{sha:" + shaOrHeadPattern + "}"

	v1.HandleFunc("/tables/"+owner, server.handleListTables).Methods(http.MethodGet)
	v1.HandleFunc("/tables/"+owner, server.handleCreateTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables/"+owner+"/"+table, server.handleGetTable).Methods(http.MethodGet)
	v1.HandleFunc("/tables/"+owner+"/"+table, server.handleDeleteTable).Methods(http.MethodDelete)
	v1.HandleFunc("/tables/"+owner+"/"+table+"/schema", server.handlePatchSchema).Methods(http.MethodPatch)
	v1.HandleFunc("/tables/"+owner+"/"+table+"/metadata", server.handlePatchMetadata).Methods(http.MethodPatch)
	v1.HandleFunc("/tables/"+owner+"/"+table+"/{attribute}", server.handlePatchTableAttribute).Methods(http.MethodPatch)

	v1.HandleFunc("/tables/"+owner+"/"+table+"/commits", server.handleListCommits).Methods(http.MethodGet)
	v1.HandleFunc("/tables/"+owner+"/"+table+"/commits/"+sha, server.handleGetCommit).Methods(http.MethodGet)
	v1.HandleFunc("/tables/"+owner+"/"+table+"/commits/"+sha+"/pull/start", server.handleStartTransaction).Methods(http.MethodPost)

	v1.HandleFunc("/pull/stage", server.handleStageFiles).Methods(http.MethodPost)
	v1.HandleFunc("/pull/truncate", server.handleTruncate).Methods(http.MethodPost)
	v1.HandleFunc("/pull/commit", server.handleCommit).Methods(http.MethodPost)
	v1.HandleFunc("/pull/abort", server.handleAbort).Methods(http.MethodPost)

	v1.HandleFunc("/owners", server.handleCreateOwner).Methods(http.MethodPost)
	v1.HandleFunc("/owners/"+owner, server.handleGetOwner).Methods(http.MethodGet)
	v1.HandleFunc("/owners/"+owner, server.handleDeleteOwner).Methods(http.MethodDelete)
	v1.HandleFunc("/owners/"+owner+"/{attribute}", server.handlePatchOwnerAttribute).Methods(http.MethodPatch)

	v1.HandleFunc("/views/"+owner, server.handleListViews).Methods(http.MethodGet)
	v1.HandleFunc("/views/"+owner+"/"+view, server.handleGetView).Methods(http.MethodGet)

	server.Handler = server.audit(server.authorize(router))
	server.server = http.Server{Handler: server.Handler}
	return server
}

// Run serves the API until ctx is canceled, then drains.
func (server *Server) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	listener, err := net.Listen("tcp", server.config.Address)
	if err != nil {
		return Error.Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(listener)
		if errs2.IsCanceled(err) || errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close stops the server immediately.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// baseURL reconstructs the externally visible base URL of the request, used
// to build the commit links embedded in responses.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
