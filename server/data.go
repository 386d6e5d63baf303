// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// TransactionRequest carries just the envelope.
type TransactionRequest struct {
	EncodedTransaction string `json:"encoded_transaction"`
}

// StageFilesRequest adds file paths to an open transaction.
type StageFilesRequest struct {
	EncodedTransaction string   `json:"encoded_transaction"`
	Paths              []string `json:"paths"`
}

// CommitRequest closes a transaction.
type CommitRequest struct {
	EncodedTransaction string `json:"encoded_transaction"`
	CommitMessage      string `json:"commit_message"`
}

func (server *Server) handleStartTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	envelope, err := server.engine.Start(ctx, vars["owner"], vars["table"], vars["sha"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message":             "Transaction started",
		"encoded_transaction": envelope,
	})
}

func (server *Server) handleStageFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request StageFilesRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}
	envelope, err := server.engine.Stage(ctx, request.EncodedTransaction, request.Paths)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message":             "Files added to transaction",
		"encoded_transaction": envelope,
	})
}

func (server *Server) handleTruncate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request TransactionRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}
	envelope, err := server.engine.Truncate(ctx, request.EncodedTransaction)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message":             "Table truncated in Transaction",
		"encoded_transaction": envelope,
	})
}

func (server *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request CommitRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}

	// commit identities are not tied to authentication yet
	result, err := server.engine.Commit(ctx, request.EncodedTransaction, request.CommitMessage, "user", baseURL(r))
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message":     result.Message,
		"transaction": result.TransactionID,
		"commit":      result.CommitSHA,
		"url":         result.URL,
	})
}

func (server *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request TransactionRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}
	if err := server.engine.Abort(ctx, request.EncodedTransaction); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{"message": "Transaction Aborted"})
}
