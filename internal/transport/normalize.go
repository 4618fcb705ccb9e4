// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// Kind classifies a NormalizedError.
type Kind string

const (
	// KindTransport covers failures where no usable response arrived and
	// server-side 5xx failures.
	KindTransport Kind = "transport"
	// KindClient covers 4xx responses.
	KindClient Kind = "client"
	// KindApplication covers 2xx responses whose body reports a failure.
	KindApplication Kind = "application"
)

// DefaultFallbackMessage is used when neither the server nor the failure
// itself supplies any text.
const DefaultFallbackMessage = "An unexpected error occurred"

// NormalizedError is the single error shape surfaced to callers of the
// transport layer. Status is always set; Message is always non-empty.
type NormalizedError struct {
	Status  int
	Message string
	Details any
	Kind    Kind

	code  sferr.Code
	cause error
}

func (e *NormalizedError) Error() string {
	return e.Message
}

func (e *NormalizedError) Unwrap() error {
	return e.cause
}

// ErrorCode implements sferr.Coder so callers can classify the failure with
// the sferr predicates.
func (e *NormalizedError) ErrorCode() sferr.Code {
	return e.code
}

// OK is always false. It marks the error as an unsuccessful result for
// callers that branch on a success flag.
func (e *NormalizedError) OK() bool {
	return false
}

// ResponseError is the raw failure produced when a request completed but the
// response signalled an error. Normalize turns it into a NormalizedError.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	// Application is set when the status was 2xx but the body carried a
	// failure marker.
	Application bool
}

func (e *ResponseError) Error() string {
	if e.Application {
		return fmt.Sprintf("%s %s reported failure", e.Method, e.Path)
	}
	return fmt.Sprintf("%s %s failed with status code %d", e.Method, e.Path, e.StatusCode)
}

// Normalize converts any failure value into a NormalizedError. It accepts
// nil, plain errors, already normalized errors and arbitrary values and
// never panics. Server-provided text wins over the failure's own text, which
// wins over fallback.
func Normalize(v any, fallback string) (ne *NormalizedError) {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackMessage
	}
	defer func() {
		if r := recover(); r != nil {
			ne = &NormalizedError{
				Status:  http.StatusInternalServerError,
				Message: fallback,
				Kind:    KindTransport,
				code:    sferr.CodeTransportRequestFailure,
			}
		}
	}()

	switch e := v.(type) {
	case nil:
		return transportFailure(nil, "", fallback)
	case *NormalizedError:
		if e != nil {
			return e
		}
		return transportFailure(nil, "", fallback)
	case error:
		return normalizeError(e, fallback)
	case map[string]any:
		msg := messageFromBody(e)
		return transportFailure(nil, msg, fallback).withDetails(e)
	case string:
		return transportFailure(nil, e, fallback)
	default:
		return transportFailure(nil, "", fallback).withDetails(v)
	}
}

func normalizeError(err error, fallback string) *NormalizedError {
	var already *NormalizedError
	if errors.As(err, &already) && already != nil {
		return already
	}

	var resp *ResponseError
	if errors.As(err, &resp) && resp != nil {
		return normalizeResponse(resp, err, fallback)
	}

	if isTimeout(err) {
		return &NormalizedError{
			Status:  http.StatusInternalServerError,
			Message: firstNonEmpty(err.Error(), fallback),
			Kind:    KindTransport,
			code:    sferr.CodeTransportRequestTimeout,
			cause:   err,
		}
	}

	// Locally raised coded errors keep their classification.
	code := sferr.CodeOf(err)
	if sferr.IsTransport(err) {
		ne := transportFailure(err, err.Error(), fallback)
		ne.code = code
		return ne
	}
	if code != "" && code != sferr.CodeInternalFailure {
		status := sferr.HTTPStatus(err)
		return &NormalizedError{
			Status:  status,
			Message: firstNonEmpty(err.Error(), fallback),
			Kind:    kindForStatus(status),
			code:    code,
			cause:   err,
		}
	}

	return transportFailure(err, err.Error(), fallback)
}

func normalizeResponse(resp *ResponseError, cause error, fallback string) *NormalizedError {
	details := decodeBody(resp.Body)
	serverMsg := ""
	if body, ok := details.(map[string]any); ok {
		serverMsg = messageFromBody(body)
	}

	if resp.Application {
		status := http.StatusUnprocessableEntity
		if body, ok := details.(map[string]any); ok {
			if s, ok := intField(body, "status"); ok && s >= 400 && s < 600 {
				status = s
			}
		}
		return &NormalizedError{
			Status:  status,
			Message: firstNonEmpty(serverMsg, cause.Error(), fallback),
			Details: details,
			Kind:    KindApplication,
			code:    sferr.CodeApplicationResponseFailure,
			cause:   cause,
		}
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &NormalizedError{
		Status:  status,
		Message: firstNonEmpty(serverMsg, cause.Error(), fallback),
		Details: details,
		Kind:    kindForStatus(status),
		code:    sferr.CodeForStatus(status),
		cause:   cause,
	}
}

func transportFailure(cause error, msg, fallback string) *NormalizedError {
	return &NormalizedError{
		Status:  http.StatusInternalServerError,
		Message: firstNonEmpty(msg, fallback),
		Kind:    KindTransport,
		code:    sferr.CodeTransportRequestFailure,
		cause:   cause,
	}
}

func (e *NormalizedError) withDetails(v any) *NormalizedError {
	e.Details = v
	return e
}

func kindForStatus(status int) Kind {
	if status >= 400 && status < 500 {
		return KindClient
	}
	return KindTransport
}

// messageFromBody extracts the server's human readable message. Shapes in
// priority order: {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."}, {"error": "..."}, {"error": {"message": "..."}}.
func messageFromBody(body map[string]any) string {
	if msg := textOf(body["detail"]); msg != "" {
		return msg
	}
	if msg := textOf(body["message"]); msg != "" {
		return msg
	}
	return textOf(body["error"])
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, item := range t {
			if msg := textOf(item); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"msg", "message", "detail"} {
			if msg := textOf(t[key]); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// decodeBody returns the decoded JSON body, the raw text when the body is
// not JSON, or nil when it is empty.
func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed)
	}
	return v
}

// applicationFailure reports whether a 2xx body carries a failure marker:
// a top-level "success" or "ok" field set to false.
func applicationFailure(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var flags struct {
		Success *bool `json:"success"`
		OK      *bool `json:"ok"`
	}
	if err := json.Unmarshal(trimmed, &flags); err != nil {
		return false
	}
	return (flags.Success != nil && !*flags.Success) || (flags.OK != nil && !*flags.OK)
}

func intField(body map[string]any, key string) (int, bool) {
	switch n := body[key].(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
