package signing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FailureKind classifies why a submission terminated without success. Every
// failure is terminal for the current submission; the user must re-trigger
// submission manually after fixing the cause.
type FailureKind string

const (
	// FailureMissingInput: no signature drawn, or no name entered.
	FailureMissingInput FailureKind = "MISSING_INPUT"
	// FailureDuplicateSubmission: the identity already completed a
	// submission.
	FailureDuplicateSubmission FailureKind = "DUPLICATE_SUBMISSION"
	// FailureComposition: the signed document could not be produced.
	FailureComposition FailureKind = "COMPOSITION_ERROR"
	// FailureDelivery: the mail transport failed. The registry is left
	// untouched so the signer can retry later.
	FailureDelivery FailureKind = "DELIVERY_ERROR"
)

// Error is the terminal failure of one submission.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failure(kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Receipt reports a completed submission back to the caller.
type Receipt struct {
	ID          uuid.UUID `json:"id"`
	SignerName  string    `json:"signer_name"`
	Identity    string    `json:"identity"`
	CompletedAt time.Time `json:"completed_at"`
}
