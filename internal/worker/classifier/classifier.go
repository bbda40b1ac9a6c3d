// Package classifier maps job failures to a category and a user-facing
// message. Explicit codes are checked first; substring rules over the error
// text are a fallback for errors that carry no code.
package classifier

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/keepsync/internal/common"
	"github.com/dmitrijs2005/keepsync/internal/worker/keep"
)

type Category string

const (
	AuthExpired        Category = "AuthExpired"
	LoginFailed        Category = "LoginFailed"
	AuthGeneric        Category = "AuthGeneric"
	NetworkError       Category = "NetworkError"
	Timeout            Category = "Timeout"
	TlsError           Category = "TlsError"
	RateLimited        Category = "RateLimited"
	NotConnected       Category = "NotConnected"
	ValidationError    Category = "ValidationError"
	UnrecognizedAction Category = "UnrecognizedAction"
	Unknown            Category = "Unknown"
)

// Messages are ASCII Czech, the locale of the web UI.
var messages = map[Category]string{
	AuthExpired:  "BadAuthentication: Pristupovy token expiroval. Odpojte ucet a znovu pripojte pomoci App Password.",
	LoginFailed:  "Prihlaseni selhalo. Zkontrolujte ze pouzivate App Password (ne bezne heslo).",
	AuthGeneric:  "Chyba overeni. Zkuste odpojit a znovu pripojit ucet.",
	NetworkError: "Chyba sitoveho pripojeni. Zkuste to pozdeji.",
	Timeout:      "Spojeni vyprelo. Zkuste synchronizaci znovu.",
	TlsError:     "Chyba SSL/TLS certifikatu. Kontaktujte podporu.",
	RateLimited:  "Prilis mnoho pozadavku. Pockejte par minut a zkuste znovu.",
	NotConnected: "Ucet neni propojen s Google Keep. Pripojte ucet v nastaveni.",
}

const fallbackMessage = "Neznama chyba synchronizace."

type Result struct {
	Category Category
	Message  string
}

func (c Category) result() Result {
	return Result{Category: c, Message: messages[c]}
}

var reasons = map[keep.Reason]Category{
	keep.ReasonBadAuth:     AuthExpired,
	keep.ReasonLogin:       LoginFailed,
	keep.ReasonAuth:        AuthGeneric,
	keep.ReasonNetwork:     NetworkError,
	keep.ReasonTimeout:     Timeout,
	keep.ReasonTLS:         TlsError,
	keep.ReasonRateLimited: RateLimited,
}

type rule struct {
	category Category
	match    func(raw, lower string) bool
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// First match wins.
var rules = []rule{
	{AuthExpired, func(raw, _ string) bool { return strings.Contains(raw, "BadAuthentication") }},
	{LoginFailed, func(raw, _ string) bool { return strings.Contains(raw, "LoginException") }},
	{AuthGeneric, func(_, lower string) bool { return strings.Contains(lower, "authentication") }},
	{NetworkError, func(_, lower string) bool { return containsAny(lower, "network", "connection") }},
	{Timeout, func(_, lower string) bool { return strings.Contains(lower, "timeout") }},
	{TlsError, func(_, lower string) bool { return containsAny(lower, "ssl", "certificate") }},
	{RateLimited, func(raw, lower string) bool { return containsAny(lower, "rate", "limit") || strings.Contains(raw, "429") }},
}

// Classify maps err to a category and a non-empty message.
func Classify(err error) Result {
	if err == nil {
		return Result{Category: Unknown, Message: fallbackMessage}
	}

	switch {
	case errors.Is(err, common.ErrorNotConnected):
		return NotConnected.result()
	case errors.Is(err, common.ErrorValidation):
		return Result{Category: ValidationError, Message: rawMessage(err)}
	case errors.Is(err, common.ErrorUnrecognizedAction):
		return Result{Category: UnrecognizedAction, Message: rawMessage(err)}
	}

	var kerr *keep.Error
	if errors.As(err, &kerr) {
		if c, ok := reasons[kerr.Reason]; ok {
			return c.result()
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout.result()
	}

	return ClassifyText(err.Error())
}

// ClassifyText applies the ordered substring rules to a raw error text.
func ClassifyText(raw string) Result {
	lower := strings.ToLower(raw)
	for _, r := range rules {
		if r.match(raw, lower) {
			return r.category.result()
		}
	}
	return Result{Category: Unknown, Message: nonEmpty(raw)}
}

func rawMessage(err error) string {
	return nonEmpty(err.Error())
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return fallbackMessage
	}
	return s
}
