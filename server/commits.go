// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mabel-dev/tarchia/manifest"
)

// pageTimeLayout is the format of the before/after pagination parameters.
const pageTimeLayout = "2006-01-02T15:04:05"

const defaultPageSize = 100

// handleGetCommit returns one commit merged with its table descriptor: the
// frozen schema and the pruned list of data blobs, without the mutable
// pointers of the live catalog entry.
func (server *Server) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	entry, err := server.catalog.GetTable(ctx, vars["owner"], vars["table"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	commit, err := server.engine.ReadCommit(ctx, entry, vars["sha"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	filters, err := manifest.ParseFilters(r.URL.Query().Get("filters"), commit.TableSchema)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	entries, err := server.engine.CommitEntries(ctx, commit, filters)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	blobs := []map[string]any{}
	for _, blob := range entries {
		blobs = append(blobs, map[string]any{
			"path":    blob.FilePath,
			"bytes":   blob.FileSize,
			"records": blob.RecordCount,
		})
	}

	doc, err := asMap(entry)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	commitDoc, err := asMap(commit)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	for key, value := range commitDoc {
		doc[key] = value
	}
	for _, key := range []string{
		"current_commit_sha", "current_schema", "last_updated_ms",
		"partitioning", "location", "subscriptions",
	} {
		delete(doc, key)
	}
	doc["commit_sha"] = commit.CommitSHA
	doc["commit_url"] = commitURL(baseURL(r), entry.Owner, entry.Name, commit.CommitSHA)
	doc["blobs"] = blobs

	server.jsonResponse(w, http.StatusOK, doc)
}

// handleListCommits walks the main branch newest-first with before/after
// bounds and cursor pagination.
func (server *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	owner, table := vars["owner"], vars["table"]

	var beforeMS, afterMS int64
	query := r.URL.Query()
	if raw := query.Get("before"); raw != "" {
		parsed, err := time.Parse(pageTimeLayout, raw)
		if err != nil {
			server.errorResponse(w, Error.Wrap(err))
			return
		}
		beforeMS = parsed.UnixMilli()
	}
	if raw := query.Get("after"); raw != "" {
		parsed, err := time.Parse(pageTimeLayout, raw)
		if err != nil {
			server.errorResponse(w, Error.Wrap(err))
			return
		}
		afterMS = parsed.UnixMilli()
	}
	pageSize := defaultPageSize
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			server.errorResponse(w, Error.Wrap(err))
			return
		}
		pageSize = parsed
	}

	entry, err := server.catalog.GetTable(ctx, owner, table)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	tree, err := server.engine.History(ctx, entry)
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	response := map[string]any{
		"table":   owner + "." + table,
		"branch":  "main",
		"commits": []map[string]any{},
	}

	commits := []map[string]any{}
	walker := tree.WalkBranch("main")
	for commit := walker.Next(); commit != nil; commit = walker.Next() {
		if beforeMS != 0 && commit.Timestamp >= beforeMS {
			continue
		}
		if afterMS != 0 && commit.Timestamp < afterMS {
			break
		}

		doc, err := asMap(commit)
		if err != nil {
			server.errorResponse(w, err)
			return
		}
		doc["commit_url"] = commitURL(baseURL(r), entry.Owner, entry.Name, commit.SHA)
		commits = append(commits, doc)

		if len(commits) >= pageSize {
			if next := walker.Next(); next != nil {
				cursor := time.UnixMilli(next.Timestamp).UTC().Format(pageTimeLayout)
				nextPage := fmt.Sprintf("%s/v1/tables/%s/%s/commits?page_size=%d&before=%s",
					baseURL(r), owner, table, pageSize, cursor)
				if afterMS != 0 {
					nextPage += "&after=" + time.UnixMilli(afterMS).UTC().Format(pageTimeLayout)
				}
				response["next_page"] = nextPage
			}
			break
		}
	}

	response["commits"] = commits
	server.jsonResponse(w, http.StatusOK, response)
}
