package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import (
	"context"
	"runtime"
	"time"
)

type CiphertextMessageType uint8

const (
	CiphertextMessageTypeWhisper   CiphertextMessageType = 2
	CiphertextMessageTypePreKey    CiphertextMessageType = 3
	CiphertextMessageTypeSenderKey CiphertextMessageType = 7
	CiphertextMessageTypePlaintext CiphertextMessageType = 8
)

// CiphertextMessage is the output of Encrypt. Its type tells the receiving
// side whether this is a plain ratchet message or one that also establishes
// the session.
type CiphertextMessage struct {
	ptr *C.SignalCiphertextMessage
}

func wrapCiphertextMessage(ptr *C.SignalCiphertextMessage) *CiphertextMessage {
	message := &CiphertextMessage{ptr: ptr}
	runtime.SetFinalizer(message, (*CiphertextMessage).Destroy)
	return message
}

func (cm *CiphertextMessage) Destroy() error {
	runtime.SetFinalizer(cm, nil)
	return wrapError(C.signal_ciphertext_message_destroy(cm.ptr))
}

func (cm *CiphertextMessage) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_ciphertext_message_serialize(&serialized, cm.ptr)
	runtime.KeepAlive(cm)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (cm *CiphertextMessage) MessageType() (CiphertextMessageType, error) {
	var messageType C.uint8_t
	signalFfiError := C.signal_ciphertext_message_type(&messageType, cm.ptr)
	runtime.KeepAlive(cm)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return CiphertextMessageType(messageType), nil
}

// Encrypt encrypts plaintext for forAddress with the session in sessionStore
// and advances the ratchet. The result is a prekey message while the far
// side has not yet processed any message from an established session.
func Encrypt(ctx context.Context, plaintext []byte, forAddress *Address, sessionStore SessionStore, identityKeyStore IdentityKeyStore) (*CiphertextMessage, error) {
	callbackCtx := NewCallbackContext(ctx)
	defer callbackCtx.Unref()
	var ciphertext *C.SignalCiphertextMessage
	signalFfiError := C.signal_encrypt_message(
		&ciphertext,
		BytesToBuffer(plaintext),
		forAddress.ptr,
		callbackCtx.wrapSessionStore(sessionStore),
		callbackCtx.wrapIdentityKeyStore(identityKeyStore),
		C.uint64_t(time.Now().UnixMilli()),
	)
	runtime.KeepAlive(plaintext)
	runtime.KeepAlive(forAddress)
	if signalFfiError != nil {
		return nil, callbackCtx.wrapError(signalFfiError)
	}
	return wrapCiphertextMessage(ciphertext), nil
}
