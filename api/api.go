// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/boostmesh/mesh/api/chains"
	"github.com/boostmesh/mesh/api/epochs"
	"github.com/boostmesh/mesh/api/middleware"
	"github.com/boostmesh/mesh/api/params"
	"github.com/boostmesh/mesh/api/pools"
	"github.com/boostmesh/mesh/api/utils"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/metrics"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins       string
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
	EnableMetrics        bool
}

// New returns the read-only api router of one chain.
func New(chain utils.Viewer, opts Options) http.Handler {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	pools.New(chain).
		Mount(router, "/pools")
	params.New(chain).
		Mount(router, "")
	epochs.New(chain).
		Mount(router, "/epochs")
	chains.New(chain).
		Mount(router, "/chains")

	if opts.EnableMetrics {
		if h := metrics.HTTPHandler(); h != nil {
			router.Path("/metrics").
				Methods(http.MethodGet).
				Name("GET /metrics").
				Handler(h)
		}
		router.Use(metricsMiddleware)
	}

	enabled := opts.EnableReqLogger
	if enabled == nil {
		enabled = &atomic.Bool{}
	}
	router.Use(middleware.RequestLoggerMiddleware(logger, enabled, opts.SlowQueriesThreshold))

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
	return handler
}
