// Package http serves action schemas over the EC2 query protocol.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/artpar/querywire/adapters/clock"
	"github.com/artpar/querywire/adapters/metrics"
	"github.com/artpar/querywire/core/registry"
	"github.com/artpar/querywire/core/schema"
	"github.com/elnormous/contenttype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Envelope parameters name the call itself and are never passed to a schema.
const (
	ParamAction  = "Action"
	ParamVersion = "Version"
)

// unknownActionLabel keeps metric cardinality bounded for unknown actions.
const unknownActionLabel = "unknown"

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Handler extracts and bundles query parameters for registered actions.
type Handler struct {
	registry *registry.Registry
	logger   zerolog.Logger
	metrics  *metrics.Collector
	clock    clock.Clock
	maxBody  int64
}

// HandlerConfig holds optional handler settings.
type HandlerConfig struct {
	Metrics      *metrics.Collector // nil disables request metrics
	Clock        clock.Clock        // defaults to the real clock
	MaxBodyBytes int64              // defaults to DefaultMaxBodyBytes
}

// NewHandler creates a handler serving the actions in reg.
func NewHandler(reg *registry.Registry, logger zerolog.Logger, cfg HandlerConfig) *Handler {
	h := &Handler{
		registry: reg,
		logger:   logger,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		maxBody:  cfg.MaxBodyBytes,
	}
	if h.clock == nil {
		h.clock = clock.Real{}
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	return h
}

// ServeAction handles an EC2-style query request. The action is named by
// the Action parameter of the query string or form body; the remaining
// parameters are extracted with the action's schema.
func (h *Handler) ServeAction(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()
	action, status := h.serveAction(w, r)
	h.observe(r.Method, action, status, start)
}

func (h *Handler) serveAction(w http.ResponseWriter, r *http.Request) (string, int) {
	requestID := middleware.GetReqID(r.Context())

	values, err := h.form(w, r)
	if err != nil {
		return unknownActionLabel, h.fail(w, r, requestID, "", err)
	}

	action := values.Get(ParamAction)
	if action == "" {
		return unknownActionLabel, h.fail(w, r, requestID, "", schema.MissingParameter(ParamAction))
	}

	s, ok := h.registry.Get(action)
	if !ok {
		return unknownActionLabel, h.fail(w, r, requestID, action, invalidAction(action))
	}

	params := make(url.Values, len(values))
	for key, vs := range values {
		if key == ParamAction || key == ParamVersion {
			continue
		}
		params[key] = vs
	}

	args, rest, err := s.ExtractValues(params)
	if err != nil {
		return action, h.fail(w, r, requestID, action, err)
	}

	if len(rest) > 0 {
		h.logger.Debug().
			Str("action", action).
			Int("leftovers", len(rest)).
			Str("request_id", requestID).
			Msg("unrecognized parameters ignored")
	}

	resp := ExtractResponse{
		Action:    action,
		Arguments: args.Map(),
		Leftovers: rest,
		RequestID: requestID,
	}
	if err := writeBody(w, r, http.StatusOK, resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
	return action, http.StatusOK
}

// form parses the query string and any form body, within the body limit.
func (h *Handler) form(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{
				status:  http.StatusRequestEntityTooLarge,
				code:    CodeRequestEntityTooLarge,
				message: fmt.Sprintf("The request body exceeds %d bytes.", tooLarge.Limit),
			}
		}
		return nil, &requestError{
			status:  http.StatusBadRequest,
			code:    CodeMalformedQueryString,
			message: err.Error(),
		}
	}
	return r.Form, nil
}

// ServeBundle converts a JSON document of arguments into wire parameters
// for the action named in the path. The document is validated with the
// action's schema first, so defaults are filled and bad values rejected.
//
//	POST /bundle/RunInstances
//	{"ImageId": "ami-1", "MinCount": 1, "MaxCount": 1, "SecurityGroup": ["web"]}
func (h *Handler) ServeBundle(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()
	action, status := h.serveBundle(w, r)
	h.observe(r.Method, action, status, start)
}

func (h *Handler) serveBundle(w http.ResponseWriter, r *http.Request) (string, int) {
	requestID := middleware.GetReqID(r.Context())
	action := chi.URLParam(r, "action")

	s, ok := h.registry.Get(action)
	if !ok {
		return unknownActionLabel, h.fail(w, r, requestID, action, invalidAction(action))
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		return action, h.fail(w, r, requestID, action, &requestError{
			status:  http.StatusUnsupportedMediaType,
			code:    CodeUnsupportedMediaType,
			message: "Content-Type must be application/json.",
		})
	}

	var doc map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return action, h.fail(w, r, requestID, action, &requestError{
			status:  http.StatusBadRequest,
			code:    CodeMalformedQueryString,
			message: "The request body is not a JSON object: " + err.Error(),
		})
	}

	args, rest, err := s.Extract(schema.FlattenText(doc))
	if err == nil {
		err = schema.UnknownParameters(rest)
	}
	if err != nil {
		return action, h.fail(w, r, requestID, action, err)
	}

	params, err := s.Bundle(nil, args)
	if err != nil {
		return action, h.fail(w, r, requestID, action, err)
	}

	query := make(url.Values, len(params))
	for k, v := range params {
		query.Set(k, v)
	}

	if negotiate(r, bundleMediaTypes).Matches(jsonMediaType) {
		err = writeJSON(w, http.StatusOK, BundleResponse{
			Action:     action,
			Parameters: params,
			Query:      query.Encode(),
			RequestID:  requestID,
		})
	} else {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write([]byte(query.Encode()))
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
	return action, http.StatusOK
}

// ListSchemas returns the names of every registered action.
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, SchemaList{Actions: h.registry.Names()}); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
}

// GetSchema describes the leaf templates of one action.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	s, ok := h.registry.Get(action)
	if !ok {
		h.fail(w, r, middleware.GetReqID(r.Context()), action, invalidAction(action))
		return
	}

	detail := SchemaDetail{Action: action, Parameters: []ParameterDetail{}}
	for _, template := range s.Templates() {
		p, _ := s.Parameter(template)
		lo, hi := p.Range()
		detail.Parameters = append(detail.Parameters, ParameterDetail{
			Template: template,
			Type:     p.Type().Kind(),
			Optional: p.IsOptional(),
			Default:  p.DefaultValue(),
			Min:      lo,
			Max:      hi,
		})
	}

	if err := writeJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
}

// fail writes an error response and returns its status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, requestID, action string, err error) int {
	status, details := classify(err)

	event := h.logger.Debug()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("action", action).
		Int("status", status).
		Str("request_id", requestID).
		Msg("request failed")

	resp := ErrorResponse{Errors: details, RequestID: requestID}
	if werr := writeBody(w, r, status, resp); werr != nil {
		h.logger.Error().Err(werr).Msg("failed to write error response")
	}
	return status
}

func (h *Handler) observe(method, action string, status int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveRequest(method, action, status, clock.Since(h.clock, start))
}

// Health returns a simple liveness check.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
