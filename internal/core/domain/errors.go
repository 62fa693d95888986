package domain

import "errors"

// Error taxonomy. Wrap with fmt.Errorf("%w: detail", ...) and test with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrAuctionClosed = errors.New("auction closed")
	ErrConflict      = errors.New("version conflict")
	ErrState         = errors.New("illegal state transition")
)

// KindOf names the taxonomy entry err belongs to, or "internal".
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrAuctionClosed):
		return "auction_closed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrInvalidCredentials):
		return "credentials"
	case errors.Is(err, ErrUserExists):
		return "conflict"
	}
	return "internal"
}
