// Package lambda serves tree reads to API Gateway proxy events.
//
// Routes, relative to the entity prefix when a Router is used:
//
//	GET /roots                    root entities
//	GET /trees                    one assembled tree per root
//	GET /nodes/{id}/descendants   the node and its descendants, flat
//	GET /nodes/{id}/tree          the node's assembled subtree
//
// Query parameters: depth (non-negative integer) and relations
// (comma-separated names).
package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/jacentio/arbor/tree"
)

// Reader is the read surface of a tree.Repository.
type Reader[K comparable, E tree.Entity[K]] interface {
	FindRoots(ctx context.Context, opts tree.FindOptions) ([]E, error)
	FindTrees(ctx context.Context, opts tree.FindOptions) ([]*tree.Node[K, E], error)
	FindByID(ctx context.Context, id K, opts tree.FindOptions) (E, error)
	FindDescendants(ctx context.Context, root E, opts tree.FindOptions) ([]E, error)
	FindDescendantsTree(ctx context.Context, root E, opts tree.FindOptions) (*tree.Node[K, E], error)
}

// ParseFunc converts a path segment into an identifier.
type ParseFunc[K comparable] func(string) (K, error)

// errBadRequest marks request errors reported with status 400.
var errBadRequest = errors.New("bad request")

// Handler serves the routes of one entity type.
type Handler[K comparable, E tree.Entity[K]] struct {
	reader  Reader[K, E]
	parseID ParseFunc[K]
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler[K comparable, E tree.Entity[K]](reader Reader[K, E], parseID ParseFunc[K], logger *slog.Logger) *Handler[K, E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[K, E]{
		reader:  reader,
		parseID: parseID,
		logger:  logger,
	}
}

// Handle is an API Gateway proxy handler for the routes above.
func (h *Handler[K, E]) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, req, requestID(req), pathSegments(req.Path)), nil
}

func (h *Handler[K, E]) serve(ctx context.Context, req events.APIGatewayProxyRequest, reqID string, segs []string) events.APIGatewayProxyResponse {
	if req.HTTPMethod != http.MethodGet {
		return errorResponse(http.StatusMethodNotAllowed, "method not allowed", reqID)
	}

	opts, err := findOptions(req.QueryStringParameters)
	if err != nil {
		return h.fail(err, req, reqID)
	}

	var body any
	switch {
	case len(segs) == 1 && segs[0] == "roots":
		body, err = h.reader.FindRoots(ctx, opts)
	case len(segs) == 1 && segs[0] == "trees":
		body, err = h.reader.FindTrees(ctx, opts)
	case len(segs) == 3 && segs[0] == "nodes" && segs[2] == "descendants":
		body, err = h.withRoot(ctx, segs[1], opts, func(root E) (any, error) {
			return h.reader.FindDescendants(ctx, root, opts)
		})
	case len(segs) == 3 && segs[0] == "nodes" && segs[2] == "tree":
		body, err = h.withRoot(ctx, segs[1], opts, func(root E) (any, error) {
			return h.reader.FindDescendantsTree(ctx, root, opts)
		})
	default:
		return errorResponse(http.StatusNotFound, "no such route", reqID)
	}
	if err != nil {
		return h.fail(err, req, reqID)
	}

	h.logger.Info("request served",
		"requestID", reqID,
		"path", req.Path,
	)
	return jsonResponse(http.StatusOK, body, reqID)
}

// withRoot loads the node named by rawID and passes it to fn.
func (h *Handler[K, E]) withRoot(ctx context.Context, rawID string, opts tree.FindOptions, fn func(E) (any, error)) (any, error) {
	id, err := h.parseID(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: id %q: %v", errBadRequest, rawID, err)
	}
	root, err := h.reader.FindByID(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return fn(root)
}

// fail maps err to a response. Unexpected errors are logged and hidden from
// the caller.
func (h *Handler[K, E]) fail(err error, req events.APIGatewayProxyRequest, reqID string) events.APIGatewayProxyResponse {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, tree.ErrInvalidDepth),
		errors.Is(err, tree.ErrInvalidID),
		errors.Is(err, tree.ErrUnknownRelation):
		return errorResponse(http.StatusBadRequest, err.Error(), reqID)
	case errors.Is(err, tree.ErrNotFound):
		return errorResponse(http.StatusNotFound, err.Error(), reqID)
	}

	h.logger.Error("failed to serve request",
		"requestID", reqID,
		"path", req.Path,
		"error", err,
	)
	return errorResponse(http.StatusInternalServerError, "internal error", reqID)
}

// Router dispatches /{entity}/... paths to per-entity handlers.
type Router struct {
	routes map[string]route
	logger *slog.Logger
}

type route interface {
	serve(ctx context.Context, req events.APIGatewayProxyRequest, reqID string, segs []string) events.APIGatewayProxyResponse
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{routes: make(map[string]route), logger: logger}
}

// Mount serves h under /{entityType}.
func Mount[K comparable, E tree.Entity[K]](r *Router, entityType string, h *Handler[K, E]) {
	r.routes[entityType] = h
}

// Handle is an API Gateway proxy handler.
func (r *Router) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqID := requestID(req)
	segs := pathSegments(req.Path)
	if len(segs) == 0 {
		return errorResponse(http.StatusNotFound, "no such route", reqID), nil
	}
	h, ok := r.routes[segs[0]]
	if !ok {
		r.logger.Warn("unknown entity type",
			"requestID", reqID,
			"entityType", segs[0],
		)
		return errorResponse(http.StatusNotFound, fmt.Sprintf("%v: %q", tree.ErrUnknownEntityType, segs[0]), reqID), nil
	}
	return h.serve(ctx, req, reqID, segs[1:]), nil
}

// findOptions reads depth and relations from query parameters.
func findOptions(params map[string]string) (tree.FindOptions, error) {
	var opts tree.FindOptions
	if raw, ok := params["depth"]; ok && raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: depth %q is not an integer", errBadRequest, raw)
		}
		opts.Depth = tree.Depth(d)
	}
	opts.Relations = splitList(params["relations"])
	return opts, nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func pathSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func requestID(req events.APIGatewayProxyRequest) string {
	if req.RequestContext.RequestID != "" {
		return req.RequestContext.RequestID
	}
	return uuid.NewString()
}

func jsonResponse(status int, body any, reqID string) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "encode response", reqID)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-Id": reqID,
		},
		Body: string(data),
	}
}

func errorResponse(status int, msg, reqID string) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"error": msg, "requestId": reqID})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-Id": reqID,
		},
		Body: string(data),
	}
}
