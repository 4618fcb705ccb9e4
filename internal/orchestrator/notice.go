// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator

import (
	"errors"

	"github.com/sigil-dev/storefront/internal/transport"
)

// Level grades a Notice.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notice is a transient, user-visible report of a failed operation. Failed
// mutations produce an error notice; failed reads produce a warning with
// Retry set so the UI can offer an inline retry.
type Notice struct {
	Level     Level
	Operation string
	Err       error
	Retry     bool
}

// Message returns the text to show the user.
func (n Notice) Message() string {
	if n.Err == nil {
		return ""
	}
	return n.Err.Error()
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// errorKind labels an error for metrics: the normalized kind for server
// failures, "local" for everything rejected before a request was made.
func errorKind(err error) string {
	var ne *transport.NormalizedError
	if errors.As(err, &ne) {
		return string(ne.Kind)
	}
	return "local"
}

func (o *Orchestrator) mutationFailed(operation string, err error) error {
	o.report(Notice{Level: LevelError, Operation: operation, Err: err})
	return err
}

func (o *Orchestrator) readFailed(operation string, err error) error {
	o.report(Notice{Level: LevelWarning, Operation: operation, Err: err, Retry: true})
	return err
}

func (o *Orchestrator) report(n Notice) {
	kind := errorKind(n.Err)
	o.metrics.Notice(n.Operation, kind)
	o.log.Warn().
		Str("operation", n.Operation).
		Str("kind", kind).
		Err(n.Err).
		Msg("operation failed")
	o.notifier.Notify(n)
}
