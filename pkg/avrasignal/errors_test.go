package avrasignal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

func TestTranslateSignalError(t *testing.T) {
	assert.NoError(t, translateSignalError(nil))

	plain := errors.New("not from the engine")
	assert.Equal(t, plain, translateSignalError(plain))

	noSession := translateSignalError(&libsignalgo.SignalError{
		Code:    libsignalgo.ErrorCodeSessionNotFound,
		Message: "session with 'x' not found",
	})
	assert.ErrorIs(t, noSession, ErrNoSession)
	assert.ErrorContains(t, noSession, "session with 'x' not found")

	untrusted := translateSignalError(&libsignalgo.SignalError{
		Code:    libsignalgo.ErrorCodeUntrustedIdentity,
		Message: "untrusted identity for address x",
	})
	assert.ErrorIs(t, untrusted, ErrUntrustedIdentity)

	duplicate := translateSignalError(&libsignalgo.SignalError{
		Code:    libsignalgo.ErrorCodeDuplicatedMessage,
		Message: "message with old counter 1, 2",
	})
	assert.ErrorIs(t, duplicate, ErrDuplicateMessage)

	// Wrapped engine errors still translate.
	wrapped := translateSignalError(fmt.Errorf("decrypting: %w", &libsignalgo.SignalError{
		Code: libsignalgo.ErrorCodeSessionNotFound,
	}))
	assert.ErrorIs(t, wrapped, ErrNoSession)

	// Unrecognized codes pass through untouched.
	unknown := &libsignalgo.SignalError{Code: libsignalgo.ErrorCodeInvalidMessage, Message: "bad mac"}
	translated := translateSignalError(unknown)
	assert.Equal(t, error(unknown), translated)
	assert.NotErrorIs(t, translated, ErrNoSession)
}

func TestDecodeError(t *testing.T) {
	err := &DecodeError{
		RatchetErr: errors.New("ratchet said no"),
		PreKeyErr:  fmt.Errorf("wrapped: %w", ErrNoSession),
	}
	assert.EqualError(t, err, "undecryptable message (as ratchet message: ratchet said no) (as prekey message: wrapped: no session with peer device)")
	assert.ErrorIs(t, err, ErrNoSession)

	var decodeErr *DecodeError
	assert.ErrorAs(t, fmt.Errorf("outer: %w", err), &decodeErr)
	assert.Equal(t, err.RatchetErr, decodeErr.RatchetErr)
}

func TestMissingKeyMaterialError(t *testing.T) {
	err := &MissingKeyMaterialError{Field: "pqPreKey"}
	assert.EqualError(t, err, "key bundle is missing pqPreKey")
}
