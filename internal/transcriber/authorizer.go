package transcriber

import "context"

// AuthorizationState mirrors the permission outcomes of the platform
// authorization subsystem.
type AuthorizationState int

const (
	AuthorizationUndetermined AuthorizationState = iota
	AuthorizationGranted
	AuthorizationDenied
	AuthorizationRestricted
)

func (s AuthorizationState) String() string {
	switch s {
	case AuthorizationGranted:
		return "granted"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationRestricted:
		return "restricted"
	default:
		return "undetermined"
	}
}

// Authorizer obtains the current permission state. The call may suspend,
// e.g. while a system prompt is shown; it is issued exactly once per
// transcription attempt.
type Authorizer interface {
	RequestAuthorization(ctx context.Context) (AuthorizationState, error)
}

type staticAuthorizer struct {
	state AuthorizationState
}

// NewStaticAuthorizer returns an Authorizer that always reports a fixed
// state, configured at deployment time.
func NewStaticAuthorizer(state AuthorizationState) Authorizer {
	return &staticAuthorizer{state: state}
}

func (a *staticAuthorizer) RequestAuthorization(_ context.Context) (AuthorizationState, error) {
	return a.state, nil
}

// ParseAuthorizationState maps a config string onto an AuthorizationState.
func ParseAuthorizationState(value string) AuthorizationState {
	switch value {
	case "granted":
		return AuthorizationGranted
	case "denied":
		return AuthorizationDenied
	case "restricted":
		return AuthorizationRestricted
	default:
		return AuthorizationUndetermined
	}
}
