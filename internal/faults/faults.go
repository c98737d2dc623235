// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package faults classifies pipeline errors into named kinds so that the
// retry policy (transport faults are retried, content faults are not) is
// decided in one place.
package faults

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Kind names a class of failure.
type Kind int

const (
	// KindContent covers layout and content failures: no results, no match,
	// missing export control, download timeout. It is the default kind.
	KindContent Kind = iota
	// KindTransport covers connectivity failures between the pipeline and
	// the browser or the network. These are retried with backoff.
	KindTransport
	// KindUsage covers bad invocations such as a missing input file.
	KindUsage
	// KindSessionUnavailable means no browser session could be started.
	KindSessionUnavailable
	// KindPersistence covers failures moving an export into place.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindTransport:
		return "transport"
	case KindUsage:
		return "usage"
	case KindSessionUnavailable:
		return "session_unavailable"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and the failing operation to a cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and op. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport marks err as a connectivity fault.
func Transport(op string, err error) error { return New(KindTransport, op, err) }

// Content marks err as a content or layout fault.
func Content(op string, err error) error { return New(KindContent, op, err) }

// Usage marks err as a usage error.
func Usage(op string, err error) error { return New(KindUsage, op, err) }

// Persistence marks err as a persistence fault.
func Persistence(op string, err error) error { return New(KindPersistence, op, err) }

// KindOf classifies err. An explicit *Error anywhere in the chain wins;
// otherwise connectivity-class errors are KindTransport and everything else
// is KindContent.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if IsConnectivity(err) {
		return KindTransport
	}
	return KindContent
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// connectivityMessages are substrings of driver errors that signal a lost
// connection when no typed error survives the driver's wrapping.
var connectivityMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"max retries exceeded",
	"no such host",
	"websocket: close",
	"use of closed network connection",
}

// IsConnectivity reports whether err is a network or transport failure
// rather than a content failure. Context cancellation is not connectivity.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindTransport
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range connectivityMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
