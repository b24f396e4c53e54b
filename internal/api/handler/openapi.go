package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
)

// OpenAPIHandler serves the API document as JSON.
type OpenAPIHandler struct {
	rawYAML  []byte
	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
}

// NewOpenAPIHandler creates a handler that converts the YAML document to
// JSON on first request.
func NewOpenAPIHandler(yamlDoc []byte) *OpenAPIHandler {
	return &OpenAPIHandler{rawYAML: yamlDoc}
}

// ServeHTTP writes the cached JSON document.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.jsonOnce.Do(func() {
		h.jsonDoc, h.jsonErr = yaml.YAMLToJSON(h.rawYAML)
	})

	if h.jsonErr != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to convert OpenAPI document to JSON", h.jsonErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.jsonDoc); err != nil {
		slog.Error("failed to write OpenAPI document", "error", err)
	}
}
