package avrasignal

import (
	"errors"
	"fmt"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var (
	// ErrNoSession means there's no ratchet state for the peer device yet.
	ErrNoSession = errors.New("no session with peer device")
	// ErrUntrustedIdentity means the peer presented an identity key that
	// doesn't match the stored one and hasn't been re-verified.
	ErrUntrustedIdentity = errors.New("untrusted peer identity")
	// ErrDuplicateMessage means this exact ciphertext was already decrypted.
	ErrDuplicateMessage = errors.New("duplicate message")
)

// MissingKeyMaterialError is returned when a fetched key bundle can't be used
// to establish a session because a required field is absent.
type MissingKeyMaterialError struct {
	Field string
}

func (err *MissingKeyMaterialError) Error() string {
	return fmt.Sprintf("key bundle is missing %s", err.Field)
}

// DecodeError is returned when an incoming blob parses as neither a normal
// ratchet message nor a prekey message. Both underlying errors are kept so
// the caller can tell which path got further.
type DecodeError struct {
	RatchetErr error
	PreKeyErr  error
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("undecryptable message (as ratchet message: %v) (as prekey message: %v)", err.RatchetErr, err.PreKeyErr)
}

func (err *DecodeError) Unwrap() []error {
	return []error{err.RatchetErr, err.PreKeyErr}
}

// translateSignalError converts libsignal's numeric error codes on the
// protocol paths into sentinel errors callers can match with errors.Is.
// Anything unrecognized passes through untouched.
func translateSignalError(err error) error {
	var signalErr *libsignalgo.SignalError
	if !errors.As(err, &signalErr) {
		return err
	}
	switch signalErr.Code {
	case libsignalgo.ErrorCodeSessionNotFound:
		return fmt.Errorf("%w: %s", ErrNoSession, signalErr.Message)
	case libsignalgo.ErrorCodeUntrustedIdentity:
		return fmt.Errorf("%w: %s", ErrUntrustedIdentity, signalErr.Message)
	case libsignalgo.ErrorCodeDuplicatedMessage:
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, signalErr.Message)
	default:
		return err
	}
}
