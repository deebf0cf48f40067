package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/scm"
	"github.com/greg-hellings/scmindex/pkg/validation"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string   `json:"status"`
	Tools  []string `json:"tools"`
}

// KeyResponse is the body of the key endpoint.
type KeyResponse struct {
	Key     string `json:"key"`
	Service string `json:"service"`
}

// NodeStatusResponse is the body of the node status endpoint.
type NodeStatusResponse struct {
	Up bool `json:"up"`
}

// ValidationFailure is a single failed rule of a parameter.
type ValidationFailure struct {
	Rule       string `json:"rule"`
	Parameters string `json:"parameters"`
}

// ValidationResponse maps each faulty parameter to its failed rules.
type ValidationResponse struct {
	Errors map[string][]ValidationFailure `json:"errors"`
}

// ErrorResponse is the body of any other failure.
type ErrorResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Handlers provides HTTP handlers for the API
type Handlers struct {
	registry *scm.Registry
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(reg *scm.Registry, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		registry: reg,
		logger:   logger,
	}
}

// Health returns the registered tools
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Tools: h.registry.Names()})
}

// Key returns the plug-in key of a tool
func (h *Handlers) Key(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.tool(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, KeyResponse{Key: tool.Key(), Service: h.registry.Service().Key()})
}

// FindAllByName lists the repositories of a node matching the criteria
func (h *Handlers) FindAllByName(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.tool(w, r)
	if !ok {
		return
	}
	node := pathParam(r, "node")
	criteria := pathParam(r, "criteria")

	entries, err := tool.FindAllByName(r.Context(), node, criteria)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.logger.Debug("repositories found", "tool", tool.SimpleName(), "node", node, "entries", len(entries))
	writeJSON(w, http.StatusOK, entries)
}

// NodeStatus checks the administrative access of a node
func (h *Handlers) NodeStatus(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.tool(w, r)
	if !ok {
		return
	}
	p, err := h.registry.Resolver().NodeParameters(r.Context(), pathParam(r, "node"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	up, err := tool.CheckStatus(r.Context(), p)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NodeStatusResponse{Up: up})
}

// Link validates the repository of a subscription
func (h *Handlers) Link(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.tool(w, r)
	if !ok {
		return
	}
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}
	if err := tool.Link(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscriptionStatus checks the repository of a subscription
func (h *Handlers) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.tool(w, r)
	if !ok {
		return
	}
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}
	p, err := h.registry.Resolver().SubscriptionParameters(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	status, err := tool.CheckSubscriptionStatus(r.Context(), p)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) tool(w http.ResponseWriter, r *http.Request) (*plugin.Resource, bool) {
	name := pathParam(r, "tool")
	tool, ok := h.registry.Tool(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found", "Tool not found: "+name)
		return nil, false
	}
	return tool, true
}

// writeFailure maps validation errors to 400 and unknown items to 404.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	if verr, ok := validation.As(err); ok {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{
			Errors: map[string][]ValidationFailure{
				verr.Field: {{Rule: verr.Rule, Parameters: verr.Value}},
			},
		})
		return
	}
	if errors.Is(err, params.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
}

func subscriptionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := pathParam(r, "subscription")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "Invalid subscription: "+raw)
		return 0, false
	}
	return id, true
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, title, detail string) {
	writeJSON(w, status, ErrorResponse{
		Status: status,
		Title:  title,
		Detail: detail,
	})
}
