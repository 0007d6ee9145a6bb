package member

import (
	"errors"
	"sort"
	"strings"

	"github.com/ovaphlow/pitchfork/service-club-go/internal/member/entity"
)

// ErrMemberNotFound is returned by lookups for ids that have no member.
var ErrMemberNotFound = errors.New("member not found")

// ValidationError carries every rejected field with a message for the end
// user. It is recoverable: the caller shows the messages and asks again.
type ValidationError struct {
	Fields entity.FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// AuthenticationError is deliberately opaque: unknown identifiers and wrong
// passwords look the same.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string { return "authentication failed" }

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: entity.FieldErrors{field: msg}}
}
