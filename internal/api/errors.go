package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies backend failures into the four cases callers act on.
type Kind string

const (
	KindAuthRequired Kind = "AUTH_REQUIRED" // missing/invalid credential; surface a login prompt, never retry
	KindNotFound     Kind = "NOT_FOUND"     // resource missing; cache permanently, never retry
	KindRateLimited  Kind = "RATE_LIMITED"  // back off; not user-visible
	KindTransient    Kind = "TRANSIENT"     // everything else; log and surface "try again"
)

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// classify maps an HTTP status plus backend error text onto a Kind. Some
// deployments return 200-with-error-body for missing attachments, so the
// text is checked for not-found phrasing too.
func classify(status int, message string) *Error {
	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthRequired
	case status == http.StatusNotFound || looksLikeNotFound(message):
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

func looksLikeNotFound(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "not found") || strings.Contains(m, "no such") || strings.Contains(m, "does not exist")
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsRateLimited(err error) bool  { return IsKind(err, KindRateLimited) }
func IsAuthRequired(err error) bool { return IsKind(err, KindAuthRequired) }
