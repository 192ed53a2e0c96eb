// Package checklist holds the review-stage checklists of a felling licence
// application and the single predicate per checklist that decides completion.
package checklist

import (
	"errors"
	"strings"
)

var (
	ErrDecisionMissing      = errors.New("a pass or fail decision is required")
	ErrReasonRequired       = errors.New("a reason is required when the answer is no")
	ErrUnknownCheck         = errors.New("unknown check")
	ErrAlreadyComplete      = errors.New("checklist is already complete")
	ErrIncomplete           = errors.New("required checks are not complete")
	ErrAlreadyResponded     = errors.New("amendment has already been responded to")
	ErrAgreementUnspecified = errors.New("must specify whether the amendments are agreed")
)

// Decision is an optional yes/no answer with an optional reason.
// It is resolved once answered, and a "no" needs a reason.
type Decision struct {
	Value  *bool  `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Yes returns a positive decision.
func Yes() Decision {
	v := true
	return Decision{Value: &v}
}

// No returns a negative decision with its reason.
func No(reason string) Decision {
	v := false
	return Decision{Value: &v, Reason: reason}
}

// Resolved reports whether the decision satisfies a required field.
func (d Decision) Resolved() bool {
	return d.Validate() == nil
}

// Validate returns why the decision is not resolved.
func (d Decision) Validate() error {
	if d.Value == nil {
		return ErrDecisionMissing
	}
	if !*d.Value && strings.TrimSpace(d.Reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// BoolPtr is a small helper for building checklist inputs.
func BoolPtr(b bool) *bool {
	return &b
}
