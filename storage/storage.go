// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storage defines the blob store used for table metadata and data
// files. Blobs are immutable once written; writers overwrite whole blobs and
// readers observe either the previous or the new content.
package storage

import (
	"context"
	"strings"

	"github.com/zeebo/errs"
)

var (
	// Error is the default error class for the storage package.
	Error = errs.Class("storage")

	// ErrBlobNotFound is returned when reading a blob that does not exist.
	ErrBlobNotFound = errs.Class("blob not found")

	// ErrInvalidConfiguration is returned when the storage backend cannot be
	// built from the supplied configuration.
	ErrInvalidConfiguration = errs.Class("invalid configuration")
)

// Config selects and configures the storage backend.
type Config struct {
	Provider string `help:"storage backend to use (LOCAL, GOOGLE, S3)" default:"LOCAL"`
	Endpoint string `help:"endpoint of the storage backend, where applicable" default:""`
	AccessKey string `help:"access key for the S3 provider" default:""`
	SecretKey string `help:"secret key for the S3 provider" default:""`
}

// Provider reads and writes immutable blobs by opaque path.
type Provider interface {
	// WriteBlob stores content at location, creating any intermediate
	// directories and replacing any previous content.
	WriteBlob(ctx context.Context, location string, content []byte) error

	// ReadBlob returns the content stored at location, or ErrBlobNotFound.
	ReadBlob(ctx context.Context, location string) ([]byte, error)
}

// Router dispatches blob operations by the scheme prefix of the location.
// Locations without a scheme go to the default provider. The manifest builder
// uses a router to read data files wherever their URL points.
type Router struct {
	fallback Provider
	byScheme map[string]Provider
}

// NewRouter creates a router sending schemeless locations to fallback.
func NewRouter(fallback Provider) *Router {
	return &Router{
		fallback: fallback,
		byScheme: map[string]Provider{},
	}
}

// Register routes locations with the given scheme to provider.
func (router *Router) Register(scheme string, provider Provider) {
	router.byScheme[strings.ToLower(scheme)] = provider
}

// Resolve picks the provider for location and strips the scheme prefix.
func (router *Router) Resolve(location string) (Provider, string, error) {
	scheme, rest, found := strings.Cut(location, "://")
	if !found {
		return router.fallback, location, nil
	}
	provider, ok := router.byScheme[strings.ToLower(scheme)]
	if !ok {
		return nil, "", Error.New("no storage provider registered for scheme %q", scheme)
	}
	return provider, rest, nil
}

// WriteBlob implements Provider.
func (router *Router) WriteBlob(ctx context.Context, location string, content []byte) error {
	provider, path, err := router.Resolve(location)
	if err != nil {
		return err
	}
	return provider.WriteBlob(ctx, path, content)
}

// ReadBlob implements Provider.
func (router *Router) ReadBlob(ctx context.Context, location string) ([]byte, error) {
	provider, path, err := router.Resolve(location)
	if err != nil {
		return nil, err
	}
	return provider.ReadBlob(ctx, path)
}
