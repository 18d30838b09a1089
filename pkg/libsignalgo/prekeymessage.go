// avra - end-to-end encrypted messaging between autonomous agents.
// Copyright (C) 2025 Avra Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import (
	"context"
	"runtime"
)

// PreKeyMessage is an incoming session-establishing message. It carries the
// handshake material alongside the first ratchet message.
type PreKeyMessage struct {
	ptr *C.SignalPreKeySignalMessage
}

func wrapPreKeyMessage(ptr *C.SignalPreKeySignalMessage) *PreKeyMessage {
	message := &PreKeyMessage{ptr: ptr}
	runtime.SetFinalizer(message, (*PreKeyMessage).Destroy)
	return message
}

func DeserializePreKeyMessage(serialized []byte) (*PreKeyMessage, error) {
	var m *C.SignalPreKeySignalMessage
	signalFfiError := C.signal_pre_key_signal_message_deserialize(&m, BytesToBuffer(serialized))
	runtime.KeepAlive(serialized)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPreKeyMessage(m), nil
}

func (m *PreKeyMessage) Clone() (*PreKeyMessage, error) {
	var cloned *C.SignalPreKeySignalMessage
	signalFfiError := C.signal_pre_key_signal_message_clone(&cloned, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPreKeyMessage(cloned), nil
}

func (m *PreKeyMessage) Destroy() error {
	runtime.SetFinalizer(m, nil)
	return wrapError(C.signal_pre_key_signal_message_destroy(m.ptr))
}

func (m *PreKeyMessage) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_pre_key_signal_message_serialize(&serialized, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (m *PreKeyMessage) GetVersion() (uint32, error) {
	var version C.uint32_t
	signalFfiError := C.signal_pre_key_signal_message_get_version(&version, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(version), nil
}

func (m *PreKeyMessage) GetRegistrationID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_pre_key_signal_message_get_registration_id(&id, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}

// GetPreKeyID returns nil if the message did not consume a one-time prekey.
func (m *PreKeyMessage) GetPreKeyID() (*uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_pre_key_signal_message_get_pre_key_id(&id, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	var zero uint32 = 0
	if uint32(id) == ^zero {
		return nil, nil
	}
	goID := uint32(id)
	return &goID, nil
}

func (m *PreKeyMessage) GetSignedPreKeyID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_pre_key_signal_message_get_signed_pre_key_id(&id, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}

func (m *PreKeyMessage) GetBaseKey() (*PublicKey, error) {
	var key *C.SignalPublicKey
	signalFfiError := C.signal_pre_key_signal_message_get_base_key(&key, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPublicKey(key), nil
}

func (m *PreKeyMessage) GetIdentityKey() (*IdentityKey, error) {
	var key *C.SignalPublicKey
	signalFfiError := C.signal_pre_key_signal_message_get_identity_key(&key, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return NewIdentityKeyFromPublicKey(wrapPublicKey(key)), nil
}

func (m *PreKeyMessage) GetSignalMessage() (*Message, error) {
	var inner *C.SignalMessage
	signalFfiError := C.signal_pre_key_signal_message_get_signal_message(&inner, m.ptr)
	runtime.KeepAlive(m)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapMessage(inner), nil
}

// DecryptPreKey establishes the incoming session described by the message and
// decrypts the ratchet message inside it. The consumed one-time prekey is
// removed from preKeyStore and the consumed kyber prekey is marked used in
// kyberPreKeyStore.
func DecryptPreKey(
	ctx context.Context,
	message *PreKeyMessage,
	fromAddress *Address,
	sessionStore SessionStore,
	identityKeyStore IdentityKeyStore,
	preKeyStore PreKeyStore,
	signedPreKeyStore SignedPreKeyStore,
	kyberPreKeyStore KyberPreKeyStore,
) ([]byte, error) {
	callbackCtx := NewCallbackContext(ctx)
	defer callbackCtx.Unref()
	var decrypted C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_decrypt_pre_key_message(
		&decrypted,
		message.ptr,
		fromAddress.ptr,
		callbackCtx.wrapSessionStore(sessionStore),
		callbackCtx.wrapIdentityKeyStore(identityKeyStore),
		callbackCtx.wrapPreKeyStore(preKeyStore),
		callbackCtx.wrapSignedPreKeyStore(signedPreKeyStore),
		callbackCtx.wrapKyberPreKeyStore(kyberPreKeyStore),
	)
	runtime.KeepAlive(message)
	runtime.KeepAlive(fromAddress)
	if signalFfiError != nil {
		return nil, callbackCtx.wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(decrypted), nil
}
