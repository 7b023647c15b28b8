package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDeniedErrorClass(t *testing.T) {
	tests := []struct {
		reason DenyReason
		class  error
	}{
		{ReasonInvalidCredential, ErrAuthentication},
		{ReasonUserNotFound, ErrAuthentication},
		{ReasonInactiveUser, ErrAuthentication},
		{ReasonLinkNotFound, ErrAuthorization},
		{ReasonLinkNotAccepted, ErrAuthorization},
		{ReasonNotConsumerParty, ErrAuthorization},
		{ReasonNotSupplierStaff, ErrAuthorization},
		{ReasonRoleNotAllowed, ErrAuthorization},
	}
	for _, tt := range tests {
		err := fmt.Errorf("attach: %w", Deny(tt.reason))
		if !errors.Is(err, tt.class) {
			t.Errorf("%s: not classified as %v", tt.reason, tt.class)
		}
		if got, ok := ReasonOf(err); !ok || got != tt.reason {
			t.Errorf("ReasonOf = %q, %v", got, ok)
		}
	}

	if _, ok := ReasonOf(ErrStoreUnavailable); ok {
		t.Error("store failure reported a deny reason")
	}
}

func TestSameSide(t *testing.T) {
	rep := Identity{UserID: 1, Role: RoleSalesRepresentative}
	consumer := Identity{UserID: 2, Role: RoleConsumer}

	if !rep.SameSide(RoleOwner) || rep.SameSide(RoleConsumer) {
		t.Error("staff side misclassified")
	}
	if !consumer.SameSide(RoleConsumer) || consumer.SameSide(RoleManager) {
		t.Error("consumer side misclassified")
	}
}
