package auth

import (
	"errors"

	"github.com/Cam1McH/RainienShare-sub001/storage"
)

// TwoFactorPhase enumerates the legal enrollment states.
type TwoFactorPhase int

const (
	// TwoFactorNotEnrolled: no secret has ever been committed.
	TwoFactorNotEnrolled TwoFactorPhase = iota
	// TwoFactorPending: a secret exists but the user has never completed
	// a successful code check against it.
	TwoFactorPending
	// TwoFactorVerified: the user has proven possession of the secret at
	// least once. Login always requires a code in this phase.
	TwoFactorVerified
)

// TwoFactorState is the validated enrollment state of a credential record.
// Constructing it through twoFactorStateOf makes the illegal column
// combination (verified without enabled, or a flag set without a secret)
// unrepresentable past the storage boundary.
type TwoFactorState struct {
	Phase  TwoFactorPhase
	Secret string
}

var errCorruptTwoFactorState = errors.New("corrupt two-factor state on credential record")

// twoFactorStateOf converts the raw column triple into a TwoFactorState.
func twoFactorStateOf(u *storage.User) (TwoFactorState, error) {
	switch {
	case u.TwoFactorVerified && !u.TwoFactorEnabled:
		return TwoFactorState{}, errCorruptTwoFactorState
	case (u.TwoFactorEnabled || u.TwoFactorVerified) && u.TOTPSecret == "":
		return TwoFactorState{}, errCorruptTwoFactorState
	case u.TwoFactorVerified:
		return TwoFactorState{Phase: TwoFactorVerified, Secret: u.TOTPSecret}, nil
	case u.TwoFactorEnabled:
		return TwoFactorState{Phase: TwoFactorPending, Secret: u.TOTPSecret}, nil
	default:
		return TwoFactorState{Phase: TwoFactorNotEnrolled, Secret: u.TOTPSecret}, nil
	}
}

// Enabled reports whether a secret has ever been committed.
func (s TwoFactorState) Enabled() bool { return s.Phase != TwoFactorNotEnrolled }

// Verified reports whether the user has completed a successful code check.
func (s TwoFactorState) Verified() bool { return s.Phase == TwoFactorVerified }
