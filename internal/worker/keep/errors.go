package keep

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Reason is the explicit failure code surfaced by the adapter.
type Reason string

const (
	ReasonBadAuth     Reason = "bad-auth"
	ReasonLogin       Reason = "login"
	ReasonAuth        Reason = "auth"
	ReasonNetwork     Reason = "network"
	ReasonTimeout     Reason = "timeout"
	ReasonTLS         Reason = "tls"
	ReasonRateLimited Reason = "rate-limited"
)

// Error is returned by adapter calls. Reason may be empty when the remote
// side did not report one; Message then carries the raw text.
type Error struct {
	Reason  Reason
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return e.Message
}

var ErrNoMasterToken = errors.New("note service returned no master token")

func statusError(status int, reason Reason, message string) *Error {
	if reason == "" {
		switch status {
		case http.StatusTooManyRequests:
			reason = ReasonRateLimited
		case http.StatusGatewayTimeout:
			reason = ReasonTimeout
		}
	}
	return &Error{Reason: reason, Status: status, Message: message}
}

// transportError maps an http.Client failure to a reason code.
func transportError(err error) *Error {
	var (
		netErr     net.Error
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)

	reason := ReasonNetwork
	switch {
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		reason = ReasonTLS
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = ReasonTimeout
	}
	return &Error{Reason: reason, Message: err.Error()}
}
