// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storj.io/common/uuid"
)

// localHosts are served without a token; everything else must present the
// configured one.
var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	// name used by in-process test clients
	"testserver": true,
}

// authorize enforces the shared-token check on non-local requests: the token
// arrives as a bearer Authorization header or an AUTH_TOKEN cookie. A missing
// token is 401, a wrong one 403.
func (server *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if split, _, err := net.SplitHostPort(host); err == nil {
			host = split
		}
		if localHosts[host] {
			next.ServeHTTP(w, r)
			return
		}

		var token string
		if cookie, err := r.Cookie("AUTH_TOKEN"); err == nil {
			token = cookie.Value
		} else if header := r.Header.Get("Authorization"); header != "" {
			parts := strings.Split(header, " ")
			if len(parts) == 2 {
				token = parts[1]
			}
		}

		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if server.config.AuthToken != token {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// audit logs one record per request and converts panics into a 500 carrying
// a correlation id.
func (server *Server) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if failure := recover(); failure != nil {
				correlation, err := uuid.New()
				id := correlation.String()
				if err != nil {
					id = "unknown"
				}
				server.log.Error("panic serving request",
					zap.String("correlation", id),
					zap.String("endpoint", r.URL.Path),
					zap.Any("panic", failure))
				server.jsonResponse(rec, http.StatusInternalServerError, message{
					"message": "Unexpected Error (" + id + ")",
				})
			}

			outcome := "success"
			if rec.status >= 400 {
				outcome = "error"
			}
			server.log.Debug("request",
				zap.String("service", "tarchia"),
				zap.String("endpoint", r.URL.Path),
				zap.String("method", r.Method),
				zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1e3),
				zap.String("outcome", outcome))
		}()

		next.ServeHTTP(rec, r)
	})
}
