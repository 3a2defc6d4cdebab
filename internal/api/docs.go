package api

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

var (
	openAPIOnce sync.Once
	openAPIDoc  any
	openAPIErr  error
)

// openAPIDocument parses the embedded OpenAPI YAML once.
func openAPIDocument() (any, error) {
	openAPIOnce.Do(func() {
		var doc map[string]any
		if err := yaml.Unmarshal(openAPISpec, &doc); err != nil {
			openAPIErr = fmt.Errorf("parsing openapi.yaml: %w", err)
			return
		}
		openAPIDoc = doc
	})
	return openAPIDoc, openAPIErr
}

// handleAPIDocs serves the API description as JSON.
func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	doc, err := openAPIDocument()
	if err != nil {
		s.writeInternalError(w, r, "failed to load API description", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleAPIDocsYAML serves the API description in its source YAML form.
func (s *Server) handleAPIDocsYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(openAPISpec)
}
