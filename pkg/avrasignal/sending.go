package avrasignal

import (
	"context"
	"fmt"
	"time"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

const (
	paddingBucketSize = 160
	paddingTerminator = 0x80
)

// addPadding rounds the message up to the next bucket boundary with ISO 7816
// style padding so the ciphertext size doesn't leak the exact plaintext
// length.
func addPadding(contents []byte) []byte {
	messageLength := len(contents)
	messageLengthWithTerminator := messageLength + 1
	messagePartCount := messageLengthWithTerminator / paddingBucketSize
	if messageLengthWithTerminator%paddingBucketSize != 0 {
		messagePartCount++
	}
	buffer := make([]byte, messagePartCount*paddingBucketSize)
	copy(buffer[:messageLength], contents)
	buffer[messageLength] = paddingTerminator
	return buffer
}

// EncryptMessage encrypts plaintext for the peer device, establishing a
// session first if there is none. At most one cryptographic operation runs
// per peer device at a time.
func (cli *Client) EncryptMessage(ctx context.Context, plaintext []byte, peer PeerDevice) (*EncryptedMessage, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	stop := trackDuration(encryptDuration)
	defer stop()
	unlock := cli.lockDevice(peer)
	defer unlock()

	err = cli.ensureSession(ctx, peer)
	if err != nil {
		return nil, err
	}

	address, err := peer.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	defer address.Destroy()

	paddedMessage := addPadding(plaintext)
	ciphertextMessage, err := libsignalgo.Encrypt(ctx, paddedMessage, address, cli.protocolStore, cli.protocolStore)
	if err != nil {
		return nil, translateSignalError(err)
	}
	defer ciphertextMessage.Destroy()

	ciphertext, err := ciphertextMessage.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ciphertext: %w", err)
	}
	messageType, err := ciphertextMessage.MessageType()
	if err != nil {
		return nil, fmt.Errorf("failed to get message type: %w", err)
	}
	return &EncryptedMessage{
		Ciphertext: ciphertext,
		Type:       messageType,
		Timestamp:  time.Now(),
	}, nil
}
