// Package swagger serves the OpenAPI description of the control API.
package swagger

import (
	"context"
	"net/http"
)

// Register attaches the OpenAPI routes to mux.
//
//	GET /openapi.yaml -> embedded OpenAPI document
//	GET /api-docs     -> minimal index linking to it
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Input Replay API</title>
  </head>
  <body>
    <p>The OpenAPI document is served at <a href="/openapi.yaml">/openapi.yaml</a>.</p>
  </body>
</html>`
