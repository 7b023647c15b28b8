package domain

import (
	"errors"
	"fmt"
)

// Failure classes. Every error surfaced by the chat core wraps one of these.
var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrAuthorization    = errors.New("not authorized")
	ErrValidation       = errors.New("invalid request")
	ErrStoreUnavailable = errors.New("message store unavailable")
	ErrLiveness         = errors.New("heartbeat timeout")
	ErrNotFound         = errors.New("not found")
)

// DenyReason explains a refused attach or post.
type DenyReason string

const (
	ReasonInvalidCredential DenyReason = "invalid credential"
	ReasonUserNotFound      DenyReason = "user not found"
	ReasonInactiveUser      DenyReason = "user is inactive"
	ReasonLinkNotFound      DenyReason = "link not found"
	ReasonLinkNotAccepted   DenyReason = "link is not accepted"
	ReasonNotConsumerParty  DenyReason = "not the consumer of this link"
	ReasonNotSupplierStaff  DenyReason = "not staff of this link's supplier"
	ReasonRoleNotAllowed    DenyReason = "role not allowed"
)

// DeniedError is returned when authentication or authorization refuses a
// caller.
type DeniedError struct {
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: %s", e.Unwrap(), e.Reason)
}

// Unwrap maps credential and account reasons to ErrAuthentication and the
// rest to ErrAuthorization.
func (e *DeniedError) Unwrap() error {
	switch e.Reason {
	case ReasonInvalidCredential, ReasonUserNotFound, ReasonInactiveUser:
		return ErrAuthentication
	}
	return ErrAuthorization
}

// Deny returns a DeniedError for reason.
func Deny(reason DenyReason) error {
	return &DeniedError{Reason: reason}
}

// ReasonOf extracts the deny reason from err, if any.
func ReasonOf(err error) (DenyReason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}
