package web

import (
	"net/http"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"gopkg.in/yaml.v3"

	"github.com/umputun/shopinv/app/store"
)

// APIItemsResponse is the JSON response for /api/v1/items
type APIItemsResponse struct {
	Items []store.Item `json:"items" yaml:"items"`
	Total int          `json:"total" yaml:"total"`
}

// handleAPIItems returns all items as JSON, designed for CLI/jq consumption
func (s *Server) handleAPIItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Items(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to load items")
		return
	}
	rest.RenderJSON(w, APIItemsResponse{Items: items, Total: len(items)})
}

// handleAPIItemsYAML exports all items as a YAML document
func (s *Server) handleAPIItemsYAML(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Items(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to load items")
		return
	}

	data, err := yaml.Marshal(APIItemsResponse{Items: items, Total: len(items)})
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to encode items")
		return
	}

	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="items.yaml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[WARN] failed to write yaml response: %v", err)
	}
}
