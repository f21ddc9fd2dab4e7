package domain

import "fmt"

// ErrorKind classifies a failure so callers can decide on retry or surfacing
// without parsing messages.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindDependency ErrorKind = "dependency"
	KindNotFound   ErrorKind = "not_found"
)

// Conflict reasons carried on KindConflict errors.
const (
	ReasonRoomFull                  = "room_full"
	ReasonDuplicateCurrentOccupancy = "duplicate_current_occupancy"
	ReasonDuplicateEmail            = "duplicate_email"
	ReasonStaleVersion              = "stale_version"
)

// Error is the structured failure every operation returns: a kind, a
// human-readable message, and the ids of the entities involved. Nothing in
// the core logs-and-swallows; errors always propagate as one of these.
type Error struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Refs    map[string]string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithRef attaches an entity id to the error and returns it.
func (e *Error) WithRef(name, id string) *Error {
	if e.Refs == nil {
		e.Refs = map[string]string{}
	}
	e.Refs[name] = id
	return e
}

// NewValidationError reports a missing or malformed required field.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a reference to a nonexistent entity.
func NewNotFoundError(resource, id string) *Error {
	e := &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
	return e.WithRef(resource+"_id", id)
}

// NewDependencyError reports an external collaborator that is unreachable,
// erroring, or timing out.
func NewDependencyError(dependency string, cause error) *Error {
	return &Error{
		Kind:    KindDependency,
		Message: fmt.Sprintf("%s: %v", dependency, cause),
	}
}

// ErrRoomFull is returned when an admission would exceed the room's capacity.
func ErrRoomFull(roomID string, capacity int) *Error {
	e := &Error{
		Kind:    KindConflict,
		Reason:  ReasonRoomFull,
		Message: fmt.Sprintf("room is at capacity (%d)", capacity),
	}
	return e.WithRef("room_id", roomID)
}

// ErrDuplicateCurrentOccupancy is returned when the tenant already holds a
// current occupancy record.
func ErrDuplicateCurrentOccupancy(tenantID string) *Error {
	e := &Error{
		Kind:    KindConflict,
		Reason:  ReasonDuplicateCurrentOccupancy,
		Message: "tenant already has a current occupancy",
	}
	return e.WithRef("tenant_id", tenantID)
}

// ErrDuplicateEmail is the gateway's duplicate-email signal mapped into the
// core's error model. Email is the provisioning idempotency key.
func ErrDuplicateEmail(email string) *Error {
	return &Error{
		Kind:    KindConflict,
		Reason:  ReasonDuplicateEmail,
		Message: fmt.Sprintf("an identity already exists for %s", email),
	}
}

// ErrStaleVersion is returned when an update carries an expected version that
// no longer matches the stored record.
func ErrStaleVersion(tenantID string, expected, actual int) *Error {
	e := &Error{
		Kind:    KindConflict,
		Reason:  ReasonStaleVersion,
		Message: fmt.Sprintf("tenant record changed: expected version %d, found %d", expected, actual),
	}
	return e.WithRef("tenant_id", tenantID)
}

// IsKind reports whether err is a domain Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := err.(*Error)
	return ok && de.Kind == kind
}

// ConflictReason returns the conflict reason if err is a conflict error,
// otherwise the empty string.
func ConflictReason(err error) string {
	if de, ok := err.(*Error); ok && de.Kind == KindConflict {
		return de.Reason
	}
	return ""
}
