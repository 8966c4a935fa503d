// Package http serves the JSON API.
//
// This file implements the Builder Pattern for JSON responses so every
// handler writes headers, status and body the same way.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mysubs/internal/core"
	applog "mysubs/internal/log"
	"mysubs/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "Unauthorized")
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// validationErrors map to 400 with the error text as message.
var validationErrors = []error{
	core.ErrInvalidName, core.ErrInvalidPrice, core.ErrInvalidCurrency,
	core.ErrInvalidCycle, core.ErrInvalidBillingDay, core.ErrInvalidCategory,
	core.ErrInvalidShare, core.ErrInvalidDate, core.ErrInvalidSettings,
	services.ErrInvalidOrder,
}

// ErrorFor maps a service error to a response. Unexpected errors are logged
// and reported without detail.
func ErrorFor(r *http.Request, err error, operation string) *JSONResponseBuilder {
	if errors.Is(err, core.ErrNotFound) {
		return NotFoundError("Not found")
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return BadRequestError(err.Error())
		}
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		applog.FieldOperation, operation,
		applog.FieldPath, r.URL.Path,
		slog.Any(applog.FieldError, err))
	return InternalServerError()
}
