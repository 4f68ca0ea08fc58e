package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig configures contract validation of HTTP traffic
// against the published OpenAPI document.
type OpenAPIValidatorConfig struct {
	Enabled  bool
	SpecPath string
	// ValidateResponses is expensive: every response body gets buffered.
	ValidateRequests  bool
	ValidateResponses bool
	// SkipPaths bypass validation entirely (health probes, metrics,
	// the websocket upgrade).
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig enables request validation outside
// production, reading the contract from artifacts/openapi.yaml.
func DefaultOpenAPIValidatorConfig() *OpenAPIValidatorConfig {
	env := os.Getenv("ENVIRONMENT")

	return &OpenAPIValidatorConfig{
		Enabled:           env != "production" && env != "prod",
		SpecPath:          "artifacts/openapi.yaml",
		ValidateRequests:  true,
		ValidateResponses: false,
		SkipPaths: []string{
			"/health",
			"/health/ready",
			"/metrics",
			"/ws/chat",
		},
	}
}

// passthrough is the middleware used when validation is off or the
// contract cannot be loaded. A broken contract file must not take the
// service down with it.
func passthrough(next http.Handler) http.Handler {
	return next
}

// OpenAPIValidator validates requests (and optionally responses)
// against an OpenAPI 3.0 document. Unknown paths and schema violations
// are rejected with 400 before reaching a handler.
func OpenAPIValidator(config *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	if config == nil {
		config = DefaultOpenAPIValidatorConfig()
	}

	if !config.Enabled {
		slog.Info("openapi validation disabled")
		return passthrough
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(config.SpecPath)
	if err != nil {
		slog.Error("failed to load openapi contract",
			slog.String("path", config.SpecPath),
			slog.String("error", err.Error()))
		return passthrough
	}

	if err := doc.Validate(loader.Context); err != nil {
		slog.Error("openapi contract is invalid", slog.String("error", err.Error()))
		return passthrough
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		slog.Error("failed to build openapi router", slog.String("error", err.Error()))
		return passthrough
	}

	slog.Info("openapi validation enabled",
		slog.Bool("validate_requests", config.ValidateRequests),
		slog.Bool("validate_responses", config.ValidateResponses),
		slog.String("contract", config.SpecPath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipValidation(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if !config.ValidateRequests {
					next.ServeHTTP(w, r)
					return
				}
				slog.Warn("request path not in openapi contract",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				writeValidationError(w, fmt.Sprintf("unknown operation: %s %s", r.Method, r.URL.Path))
				return
			}

			if config.ValidateRequests {
				input := &openapi3filter.RequestValidationInput{
					Request:    r,
					PathParams: pathParams,
					Route:      route,
					Options: &openapi3filter.Options{
						AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					},
				}
				if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
					slog.Warn("request failed contract validation",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()))
					writeValidationError(w, fmt.Sprintf("request validation failed: %s", err.Error()))
					return
				}
			}

			if !config.ValidateResponses {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// The response is already on the wire at this point, so a
			// violation is only logged.
			input := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: &openapi3filter.RequestValidationInput{
					Request:    r,
					PathParams: pathParams,
					Route:      route,
				},
				Status: recorder.statusCode,
				Header: recorder.Header(),
				Body:   io.NopCloser(bytes.NewReader(recorder.body)),
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
				slog.Warn("response violates openapi contract",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.statusCode),
					slog.String("error", err.Error()))
			}
		})
	}
}

func skipValidation(path string, skipPaths []string) bool {
	for _, prefix := range skipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeValidationError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// responseRecorder buffers the response so it can be checked against
// the contract after the handler runs.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
