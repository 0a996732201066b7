package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.json
var openapiSpec []byte

type OpenAPIHandler struct{}

func NewOpenAPIHandler() *OpenAPIHandler { return &OpenAPIHandler{} }

func (h *OpenAPIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openapiSpec)
	})
}
