package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ConnectionError wraps a transport failure: the SSH channel or an HTTP
// round trip could not complete at all.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteCommandError reports a non-zero exit code from a remote shell
// command.
type RemoteCommandError struct {
	Command  string
	Stderr   string
	ExitCode int
}

func (e *RemoteCommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no stderr output"
	}
	return fmt.Sprintf("remote command %q exited with %d: %s", e.Command, e.ExitCode, msg)
}

// APIError reports a non-2xx response from an external HTTP API.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api returned %d: %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
}

// Conflict reports whether the failure is the API's "already exists"
// response. Idempotent ensure operations treat it as success.
func (e *APIError) Conflict() bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(e.Body), "already exist")
}

// ConfigValidationError carries the raw output of a failed proxy syntax
// test. Reported verbatim to the caller.
type ConfigValidationError struct {
	Output string
}

func (e *ConfigValidationError) Error() string {
	return "proxy configuration test failed: " + strings.TrimSpace(e.Output)
}

// CertificateIssuanceError reports a failed issuance: either the ACME client
// exited non-zero or the expected certificate files never appeared.
type CertificateIssuanceError struct {
	Domain string
	Reason string
}

func (e *CertificateIssuanceError) Error() string {
	return fmt.Sprintf("certificate issuance for %s failed: %s", e.Domain, e.Reason)
}

// ParseError reports that a configuration pattern did not match. Callers
// recover by falling back to documented defaults rather than aborting.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (%s): %s", e.Reason, e.Input)
}
