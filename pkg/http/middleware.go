/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package http holds the middleware shared by the local HTTP API.
package http

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/carverauto/connectbridge/pkg/logger"
)

const (
	headerAPIKey   = "X-API-Key"
	queryAPIKey    = "api_key"
	preflightAge   = "3600"
	allowMethods   = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders   = "Content-Type, Authorization, X-API-Key"
	wildcardOrigin = "*"
)

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

func (c CORSConfig) allows(origin string) bool {
	return origin != "" && (slices.Contains(c.AllowedOrigins, wildcardOrigin) || slices.Contains(c.AllowedOrigins, origin))
}

// CheckOrigin reports whether a websocket upgrade from r may proceed.
// Requests without an Origin header come from non-browser clients.
func (c CORSConfig) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	return origin == "" || c.allows(origin)
}

// CommonMiddleware logs each request and answers CORS preflights.
func CommonMiddleware(next http.Handler, cors CORSConfig, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if origin := r.Header.Get("Origin"); cors.allows(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", preflightAge)
			w.Header().Add("Vary", "Origin")

			if cors.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)

		if log != nil {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}
	})
}

// APIKeyOptions configures APIKeyMiddlewareWithOptions.
type APIKeyOptions struct {
	APIKey          string
	ExcludePaths    []string
	LogUnauthorized bool
	Logger          logger.Logger
}

// APIKeyMiddleware rejects requests without the configured key. An empty
// key disables the check.
func APIKeyMiddleware(apiKey string) func(next http.Handler) http.Handler {
	return APIKeyMiddlewareWithOptions(APIKeyOptions{APIKey: apiKey})
}

// APIKeyMiddlewareWithOptions checks the X-API-Key header, falling back to
// the api_key query parameter for websocket clients.
func APIKeyMiddlewareWithOptions(opts APIKeyOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.APIKey == "" || excluded(r.URL.Path, opts.ExcludePaths) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerAPIKey)
			if key == "" {
				key = r.URL.Query().Get(queryAPIKey)
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(opts.APIKey)) != 1 {
				if opts.LogUnauthorized && opts.Logger != nil {
					opts.Logger.Warn().
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("remote_addr", r.RemoteAddr).
						Msg("Unauthorized API access attempt")
				}

				http.Error(w, "Unauthorized", http.StatusUnauthorized)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func excluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimRight(p, "/")+"/") {
			return true
		}
	}

	return false
}
