// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrLeadNotFound is a sentinel error
type ErrLeadNotFound struct {
	Phone string
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead %s not found", e.Phone)
}

// Helper constructor
func NewLeadNotFound(phone string) error {
	return &ErrLeadNotFound{Phone: phone}
}

// ErrTemplateNotFound signals a missing or inactive message template.
type ErrTemplateNotFound struct {
	Name string
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template %q not found or inactive", e.Name)
}

func NewTemplateNotFound(name string) error {
	return &ErrTemplateNotFound{Name: name}
}

// ProviderError: a model backend was unreachable or returned non-2xx.
type ProviderError struct {
	Backend string
	Status  int
	Body    string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Backend, e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError: a backend answered 2xx but the structured
// payload was unparseable or missing required fields.
type MalformedResponseError struct {
	Backend string
	Missing []string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("provider %s: malformed response, missing fields %v", e.Backend, e.Missing)
	}
	return fmt.Sprintf("provider %s: malformed response: %v", e.Backend, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PipelineExhausted: every fallback failed and no reply could be produced.
type PipelineExhausted struct {
	LeadPhone string
	Reason    string
}

func (e *PipelineExhausted) Error() string {
	return fmt.Sprintf("pipeline exhausted for %s: %s", e.LeadPhone, e.Reason)
}

// DeliveryFailure: the messaging transport rejected or dropped a send.
// Recorded on the message and retried out-of-band.
type DeliveryFailure struct {
	Recipient string
	Err       error
}

func (e *DeliveryFailure) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryFailure) Unwrap() error { return e.Err }

// ErrClaimConflict: another round won the claim race. A retry signal,
// not a failure.
var ErrClaimConflict = errors.New("claim conflict: batch already claimed")
