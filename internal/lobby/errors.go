// internal/lobby/errors.go
package lobby

import "errors"

// Kind classifies a lobby error for logging and for transports that care.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindStateConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	default:
		return "infrastructure"
	}
}

// Error is a client-facing failure. Msg is sent verbatim in the acknowledgement.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrMissingLobbyID  = &Error{Kind: KindValidation, Msg: "Missing lobbyId"}
	ErrInvalidCard     = &Error{Kind: KindValidation, Msg: "Invalid card"}
	ErrLobbyNotFound   = &Error{Kind: KindNotFound, Msg: "Lobby not found"}
	ErrNotParticipant  = &Error{Kind: KindAuthorization, Msg: "Not a participant in this lobby"}
	ErrNotHostReveal   = &Error{Kind: KindAuthorization, Msg: "Only the lobby owner can reveal votes"}
	ErrNotHostReset    = &Error{Kind: KindAuthorization, Msg: "Only the lobby owner can reset the lobby"}
	ErrCaptchaFailed   = &Error{Kind: KindAuthorization, Msg: "Captcha verification failed"}
	ErrAlreadyRevealed = &Error{Kind: KindStateConflict, Msg: "Votes are already revealed"}
)

// KindOf returns the Kind of err, or KindInfrastructure for anything that is not an *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInfrastructure
}
