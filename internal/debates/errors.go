package debates

import "fmt"

// Kind classifies a rejection for transport-level status mapping.
type Kind string

const (
	// KindValidation marks missing or malformed input.
	KindValidation Kind = "validation"
	// KindNotFound marks an absent debate or argument.
	KindNotFound Kind = "not_found"
	// KindForbidden marks an actor not authorized for the mutation.
	KindForbidden Kind = "forbidden"
	// KindConflict marks a business-rule conflict such as a duplicate join or vote.
	KindConflict Kind = "conflict"
	// KindModerated marks banned content; the rejection carries the offending term.
	KindModerated Kind = "moderated"
	// KindStorage marks a persistence fault.
	KindStorage Kind = "storage"
)

// User-visible rejection messages. These strings are a compatibility surface
// for clients built against the API and must not change casually.
const (
	msgDebateNotFound      = "Debate not found"
	msgDebateEnded         = "Debate has ended"
	msgAlreadyClosed       = "Debate already closed"
	msgAlreadyJoined       = "User already joined this debate"
	msgNotParticipant      = "User has not joined this debate"
	msgArgumentNotFound    = "Argument not found"
	msgAlreadyVoted        = "User already voted on this argument"
	msgEditWindowExpired   = "Edit window has expired"
	msgDeleteWindowExpired = "Delete window has expired"
	msgMissingFields       = "Missing required fields"
	msgNotAuthor           = "You are not the author of this argument"
)

// Rejection is a typed business-rule or storage failure surfaced to callers.
// It carries a dotted machine-readable code, a classification kind and the
// user-visible message.
type Rejection struct {
	kind    Kind
	code    string
	message string
	term    string
	err     error
}

func (r *Rejection) Error() string {
	if r.err == nil {
		return fmt.Sprintf("%s: %s", r.code, r.message)
	}
	return fmt.Sprintf("%s: %s: %v", r.code, r.message, r.err)
}

func (r *Rejection) Unwrap() error {
	return r.err
}

// Kind returns the rejection classification.
func (r *Rejection) Kind() Kind {
	return r.kind
}

// Code returns the dotted machine-readable code, e.g. "debates.join.already_joined".
func (r *Rejection) Code() string {
	return r.code
}

// Message returns the user-visible rejection message.
func (r *Rejection) Message() string {
	return r.message
}

// Term returns the offending term for moderated rejections, empty otherwise.
func (r *Rejection) Term() string {
	return r.term
}

func newRejection(operation, reason string, kind Kind, message string) *Rejection {
	return &Rejection{
		kind:    kind,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
	}
}

func newModeratedRejection(operation, term string) *Rejection {
	return &Rejection{
		kind:    KindModerated,
		code:    fmt.Sprintf("%s.moderated", operation),
		message: fmt.Sprintf("Inappropriate content detected: %q", term),
		term:    term,
	}
}

func newStorageRejection(operation, reason string, cause error) *Rejection {
	return &Rejection{
		kind:    KindStorage,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: "Storage failure",
		err:     cause,
	}
}
