// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeTransportRequestFailure  Code = "transport.request.failure"
	CodeTransportRequestTimeout  Code = "transport.request.timeout"
	CodeTransportUpstreamFailure Code = "transport.upstream.failure"
	CodeTransportResponseInvalid Code = "transport.response.invalid"

	CodeClientRequestInvalid   Code = "client.request.invalid"
	CodeClientAuthUnauthorized Code = "client.auth.unauthorized"
	CodeClientAuthForbidden    Code = "client.auth.forbidden"
	CodeClientEntityNotFound   Code = "client.entity.not_found"
	CodeClientEntityConflict   Code = "client.entity.conflict"
	CodeClientRateExceeded     Code = "client.rate.exceeded"

	CodeApplicationResponseFailure Code = "application.response.failure"

	CodeSessionSendInvalid   Code = "session.send.invalid_input"
	CodeSessionNotFound      Code = "session.get.not_found"
	CodeSessionRenameInvalid Code = "session.rename.invalid_input"

	CodeCartQuantityInvalid Code = "cart.quantity.invalid_input"
	CodeCartProductInvalid  Code = "cart.product.invalid_input"
	CodeCartCheckoutEmpty   Code = "cart.checkout.invalid"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigWriteFailure         Code = "config.write.failure"

	CodeStateStoreFailure     Code = "state.store.failure"
	CodeStateStoreInvalidKey  Code = "state.store.invalid_input"
	CodeStateStoreOpenFailure Code = "state.open.failure"

	CodeCredentialInvalidInput  Code = "credential.store.invalid_input"
	CodeCredentialNotFound      Code = "credential.get.not_found"
	CodeCredentialStoreFailure  Code = "credential.store.failure"
	CodeCredentialDeleteFailure Code = "credential.delete.failure"

	CodeMockBackendConfigInvalid Code = "mockbackend.config.invalid"
	CodeMockBackendStartFailure  Code = "mockbackend.start.failure"

	CodeMetricsListenFailure Code = "metrics.listen.failure"
	CodeTelemetryInitFailure Code = "telemetry.init.failure"

	CodeCLIRequestFailure Code = "cli.request.failure"
	CodeCLISetupFailure   Code = "cli.setup.failure"
	CodeCLIInputInvalid   Code = "cli.input.invalid"

	CodeInternalFailure Code = "internal.failure"
)

// Coder is implemented by error values that carry a Code without being
// oops errors, such as the transport layer's normalized error.
type Coder interface {
	ErrorCode() Code
}

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldProductID(value string) Attr {
	return Field("product_id", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldStatus(value int) Attr {
	return Field("status", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		switch code := oopsErr.Code().(type) {
		case Code:
			if code != "" {
				return code
			}
		case string:
			if code != "" {
				return Code(code)
			}
		case nil:
		default:
			return Code(fmt.Sprintf("%v", code))
		}
	}

	var coder Coder
	if stderrors.As(err, &coder) {
		return coder.ErrorCode()
	}

	return ""
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsRateExceeded(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsTransport reports whether err belongs to the transport class: the
// request never produced a usable response, or the server failed with 5xx.
func IsTransport(err error) bool {
	return area(CodeOf(err)) == "transport"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case HasCode(err, CodeApplicationResponseFailure):
		return http.StatusUnprocessableEntity
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsRateExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus picks the code that describes an HTTP status. It is the
// inverse of HTTPStatus for the statuses the backend actually returns.
func CodeForStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized:
		return CodeClientAuthUnauthorized
	case status == http.StatusForbidden:
		return CodeClientAuthForbidden
	case status == http.StatusNotFound:
		return CodeClientEntityNotFound
	case status == http.StatusConflict:
		return CodeClientEntityConflict
	case status == http.StatusTooManyRequests:
		return CodeClientRateExceeded
	case status == http.StatusUnprocessableEntity:
		return CodeApplicationResponseFailure
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return CodeTransportRequestTimeout
	case status >= 400 && status < 500:
		return CodeClientRequestInvalid
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return CodeTransportUpstreamFailure
	default:
		return CodeTransportRequestFailure
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

func area(code Code) string {
	raw := string(code)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}
