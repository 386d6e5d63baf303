// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storj.io/common/uuid"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/eventing"
)

// CreateTableRequest is the body of POST /v1/tables/{owner}.
type CreateTableRequest struct {
	Name                string                       `json:"name"`
	Steward             string                       `json:"steward"`
	Description         string                       `json:"description"`
	Location            string                       `json:"location"`
	Partitioning        []string                     `json:"partitioning"`
	Visibility          catalog.TableVisibility      `json:"visibility"`
	Permissions         []catalog.DatasetPermissions `json:"permissions"`
	Disposition         catalog.TableDisposition     `json:"disposition"`
	Metadata            map[string]any               `json:"metadata"`
	TableSchema         catalog.Schema               `json:"table_schema"`
	FreshnessLifeInDays int64                        `json:"freshness_life_in_days"`
	RetentionInDays     int64                        `json:"retention_in_days"`
	Encryption          *catalog.EncryptionDetails   `json:"encryption_details"`
}

// asMap flattens a catalog document through its JSON form so handlers can
// shape responses field by field.
func asMap(entry any) (map[string]any, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, Error.Wrap(err)
	}
	return doc, nil
}

func commitURL(base, owner, table, sha string) string {
	return fmt.Sprintf("%s/v1/tables/%s/%s/commits/%s", base, owner, table, sha)
}

// listTableFields is the subset of the table document returned by list.
var listTableFields = map[string]bool{
	"table_id":           true,
	"current_commit_sha": true,
	"name":               true,
	"description":        true,
	"visibility":         true,
	"owner":              true,
	"last_updated_ms":    true,
	"steward":            true,
	"metadata":           true,
}

func (server *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]

	entries, err := server.catalog.ListTables(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	tables := []map[string]any{}
	for _, entry := range entries {
		doc, err := asMap(entry)
		if err != nil {
			server.errorResponse(w, err)
			return
		}
		for key := range doc {
			if !listTableFields[key] {
				delete(doc, key)
			}
		}
		if entry.CurrentCommitSHA != nil {
			doc["commit_url"] = commitURL(baseURL(r), owner, entry.Name, *entry.CurrentCommitSHA)
		}
		tables = append(tables, doc)
	}
	server.jsonResponse(w, http.StatusOK, tables)
}

func (server *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := mux.Vars(r)["owner"]

	var request CreateTableRequest
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}
	if !catalog.ValidIdentifier(request.Name) {
		server.errorResponse(w, catalog.ErrDataEntry.New("table name %q is not a valid identifier", request.Name))
		return
	}
	request.TableSchema.Normalize()
	if err := request.TableSchema.Validate(); err != nil {
		server.errorResponse(w, err)
		return
	}

	ownerEntry, err := server.catalog.GetOwner(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	if _, err := server.catalog.GetTable(ctx, owner, request.Name); err == nil {
		server.errorResponse(w, catalog.ErrAlreadyExists.New("%s.%s", owner, request.Name))
		return
	} else if !catalog.ErrTableNotFound.Has(err) {
		server.errorResponse(w, err)
		return
	}

	id, err := uuid.New()
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	if request.Visibility == "" {
		request.Visibility = catalog.VisibilityPrivate
	}
	if request.Disposition == "" {
		request.Disposition = catalog.DispositionSnapshot
	}

	// tables are created with no commit; external tables never get one
	entry := &catalog.TableCatalogEntry{
		Name:                request.Name,
		Steward:             request.Steward,
		Owner:               owner,
		TableID:             id.String(),
		Description:         request.Description,
		Location:            request.Location,
		Partitioning:        request.Partitioning,
		LastUpdatedMS:       time.Now().UnixMilli(),
		Permissions:         request.Permissions,
		Visibility:          request.Visibility,
		CurrentSchema:       request.TableSchema,
		FormatVersion:       1,
		Disposition:         request.Disposition,
		Metadata:            request.Metadata,
		FreshnessLifeInDays: request.FreshnessLifeInDays,
		RetentionInDays:     request.RetentionInDays,
		Encryption:          request.Encryption,
	}
	if err := entry.Validate(); err != nil {
		server.errorResponse(w, err)
		return
	}
	if err := server.catalog.UpdateTable(ctx, entry.TableID, entry); err != nil {
		server.errorResponse(w, err)
		return
	}

	// existence marker for operators browsing the blob store
	marker := server.engine.Layout().MarkerPath(owner, entry.TableID, entry.Name)
	if err := server.store.WriteBlob(ctx, marker, []byte{}); err != nil {
		server.errorResponse(w, err)
		return
	}

	ref := owner + "." + entry.Name
	err = server.events.Trigger(ctx, eventing.OwnerEvents, eventing.EventTableCreated, ownerEntry.Subscriptions, map[string]any{
		"event": string(eventing.EventTableCreated),
		"table": ref,
		"url":   baseURL(r) + "/v1/tables/" + owner + "/" + entry.Name,
	})
	if err != nil {
		server.log.Warn("table created notification failed", zap.String("table", ref), zap.Error(err))
	}

	server.log.Info("table created", zap.String("table", ref))
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Table Created",
		"table":   ref,
	})
}

func (server *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	entry, err := server.catalog.GetTable(ctx, vars["owner"], vars["table"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	doc, err := asMap(entry)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	if entry.CurrentCommitSHA != nil {
		doc["commit_url"] = commitURL(baseURL(r), entry.Owner, entry.Name, *entry.CurrentCommitSHA)
	}
	server.jsonResponse(w, http.StatusOK, doc)
}

func (server *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	owner, table := vars["owner"], vars["table"]

	ownerEntry, err := server.catalog.GetOwner(ctx, owner)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	entry, err := server.catalog.GetTable(ctx, owner, table)
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	if err := server.catalog.DeleteTable(ctx, entry.TableID); err != nil {
		server.errorResponse(w, err)
		return
	}

	// keep the final catalog entry next to the data so the table can be
	// manually restated
	tombstone, err := json.Marshal(entry)
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	if err := server.store.WriteBlob(ctx, server.engine.Layout().TombstonePath(owner, entry.TableID), tombstone); err != nil {
		server.errorResponse(w, err)
		return
	}

	ref := owner + "." + table
	err = server.events.Trigger(ctx, eventing.OwnerEvents, eventing.EventTableDeleted, ownerEntry.Subscriptions, map[string]any{
		"event": string(eventing.EventTableDeleted),
		"table": ref,
	})
	if err != nil {
		server.log.Warn("table deleted notification failed", zap.String("table", ref), zap.Error(err))
	}

	server.log.Info("table deleted", zap.String("table", ref))
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Table Deleted",
		"table":   ref,
	})
}

func (server *Server) handlePatchSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	owner, table := vars["owner"], vars["table"]

	var proposed catalog.Schema
	if err := server.decodeBody(r, &proposed); err != nil {
		server.errorResponse(w, err)
		return
	}
	if err := server.engine.PatchSchema(ctx, owner, table, proposed); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Schema Updated",
		"table":   owner + "." + table,
	})
}

func (server *Server) handlePatchMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	var request struct {
		Metadata map[string]any `json:"metadata"`
	}
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}

	entry, err := server.catalog.GetTable(ctx, vars["owner"], vars["table"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}
	entry.Metadata = request.Metadata
	if err := server.catalog.UpdateTable(ctx, entry.TableID, entry); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Metadata updated",
		"table":   vars["owner"] + "." + vars["table"],
	})
}

func (server *Server) handlePatchTableAttribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	attribute := vars["attribute"]

	var request struct {
		Value string `json:"value"`
	}
	if err := server.decodeBody(r, &request); err != nil {
		server.errorResponse(w, err)
		return
	}

	entry, err := server.catalog.GetTable(ctx, vars["owner"], vars["table"])
	if err != nil {
		server.errorResponse(w, err)
		return
	}

	switch attribute {
	case "visibility":
		entry.Visibility = catalog.TableVisibility(request.Value)
	case "steward":
		entry.Steward = request.Value
	default:
		server.errorResponse(w, catalog.ErrDataEntry.New("data attribute %s cannot be modified via the API", attribute))
		return
	}

	if err := server.catalog.UpdateTable(ctx, entry.TableID, entry); err != nil {
		server.errorResponse(w, err)
		return
	}
	server.jsonResponse(w, http.StatusOK, message{
		"message": "Table updated",
		"table":   vars["owner"] + "." + vars["table"],
	})
}
