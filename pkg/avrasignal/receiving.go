package avrasignal

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// DecryptMessage decrypts a ciphertext from the peer device. The blob is
// first tried as a normal ratchet message; on any failure it is retried as a
// prekey message, which consumes the referenced one-time prekey and
// establishes a session as side effects. If both paths fail the message is
// undecryptable, but the session stays intact.
func (cli *Client) DecryptMessage(ctx context.Context, ciphertext []byte, sender PeerDevice) ([]byte, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	stop := trackDuration(decryptDuration)
	defer stop()
	unlock := cli.lockDevice(sender)
	defer unlock()

	// Spinning the ratchet for a byte-identical redelivery would fail with a
	// duplicated-message error anyway, so drop it up front.
	hash := sha256.Sum256(ciphertext)
	if cli.recentlyDecrypted.Contains(hash) {
		duplicateMessages.Inc()
		return nil, fmt.Errorf("%w: ciphertext was already decrypted", ErrDuplicateMessage)
	}

	address, err := sender.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	defer address.Destroy()

	plaintext, ratchetErr := cli.decryptRatchetMessage(ctx, ciphertext, address)
	if ratchetErr != nil {
		var preKeyErr error
		plaintext, preKeyErr = cli.decryptPreKeyMessage(ctx, ciphertext, address)
		if preKeyErr != nil {
			for _, pathErr := range []error{ratchetErr, preKeyErr} {
				if errors.Is(pathErr, ErrDuplicateMessage) || errors.Is(pathErr, ErrUntrustedIdentity) {
					return nil, pathErr
				}
			}
			return nil, &DecodeError{RatchetErr: ratchetErr, PreKeyErr: preKeyErr}
		}
	}

	err = stripPadding(&plaintext)
	if err != nil {
		return nil, err
	}
	cli.recentlyDecrypted.Push(hash, time.Now())
	return plaintext, nil
}

func (cli *Client) decryptRatchetMessage(ctx context.Context, ciphertext []byte, address *libsignalgo.Address) ([]byte, error) {
	message, err := libsignalgo.DeserializeMessage(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize ratchet message: %w", err)
	}
	defer message.Destroy()
	plaintext, err := libsignalgo.Decrypt(ctx, message, address, cli.protocolStore, cli.protocolStore)
	if err != nil {
		return nil, translateSignalError(err)
	}
	return plaintext, nil
}

func (cli *Client) decryptPreKeyMessage(ctx context.Context, ciphertext []byte, address *libsignalgo.Address) ([]byte, error) {
	message, err := libsignalgo.DeserializePreKeyMessage(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize prekey message: %w", err)
	}
	defer message.Destroy()
	plaintext, err := libsignalgo.DecryptPreKey(
		ctx,
		message,
		address,
		cli.protocolStore,
		cli.protocolStore,
		cli.protocolStore,
		cli.protocolStore,
		cli.protocolStore,
	)
	if err != nil {
		return nil, translateSignalError(err)
	}
	return plaintext, nil
}

func stripPadding(contents *[]byte) error {
	for i := len(*contents) - 1; i >= 0; i-- {
		if (*contents)[i] == paddingTerminator {
			*contents = (*contents)[:i]
			return nil
		} else if (*contents)[i] != 0x00 {
			return fmt.Errorf("Invalid ISO7816 padding")
		}
	}
	return fmt.Errorf("Invalid ISO7816 padding, len(contents): %v", len(*contents))
}
