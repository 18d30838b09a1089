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
	"time"
)

// PreKeyBundle is the set of public key material one agent publishes so that
// other agents can start PQXDH sessions with it. The one-time EC prekey is
// optional, everything else is required.
type PreKeyBundle struct {
	ptr *C.SignalPreKeyBundle
}

func wrapPreKeyBundle(ptr *C.SignalPreKeyBundle) *PreKeyBundle {
	bundle := &PreKeyBundle{ptr: ptr}
	runtime.SetFinalizer(bundle, (*PreKeyBundle).Destroy)
	return bundle
}

func NewPreKeyBundle(
	registrationID uint32,
	deviceID uint32,
	preKeyID *uint32,
	preKey *PublicKey,
	signedPreKeyID uint32,
	signedPreKey *PublicKey,
	signedPreKeySignature []byte,
	kyberPreKeyID uint32,
	kyberPreKey *KyberPublicKey,
	kyberPreKeySignature []byte,
	identityKey *IdentityKey,
) (*PreKeyBundle, error) {
	var pkb *C.SignalPreKeyBundle
	var zero uint32 = 0
	ffiPreKeyID := C.uint32_t(^zero)
	var ffiPreKey *C.SignalPublicKey
	if preKeyID != nil {
		ffiPreKeyID = C.uint32_t(*preKeyID)
	}
	if preKey != nil {
		ffiPreKey = preKey.ptr
	}

	signalFfiError := C.signal_pre_key_bundle_new(
		&pkb,
		C.uint32_t(registrationID),
		C.uint32_t(deviceID),
		ffiPreKeyID,
		ffiPreKey,
		C.uint32_t(signedPreKeyID),
		signedPreKey.ptr,
		BytesToBuffer(signedPreKeySignature),
		C.uint32_t(kyberPreKeyID),
		kyberPreKey.ptr,
		BytesToBuffer(kyberPreKeySignature),
		identityKey.publicKey.ptr,
	)
	runtime.KeepAlive(preKey)
	runtime.KeepAlive(signedPreKey)
	runtime.KeepAlive(signedPreKeySignature)
	runtime.KeepAlive(kyberPreKey)
	runtime.KeepAlive(kyberPreKeySignature)
	runtime.KeepAlive(identityKey)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPreKeyBundle(pkb), nil
}

func (pkb *PreKeyBundle) Clone() (*PreKeyBundle, error) {
	var cloned *C.SignalPreKeyBundle
	signalFfiError := C.signal_pre_key_bundle_clone(&cloned, pkb.ptr)
	runtime.KeepAlive(pkb)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPreKeyBundle(cloned), nil
}

func (pkb *PreKeyBundle) Destroy() error {
	runtime.SetFinalizer(pkb, nil)
	return wrapError(C.signal_pre_key_bundle_destroy(pkb.ptr))
}

func (pkb *PreKeyBundle) GetIdentityKey() (*IdentityKey, error) {
	var pub *C.SignalPublicKey
	signalFfiError := C.signal_pre_key_bundle_get_identity_key(&pub, pkb.ptr)
	runtime.KeepAlive(pkb)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return NewIdentityKeyFromPublicKey(wrapPublicKey(pub)), nil
}

// ProcessPreKeyBundle runs the PQXDH handshake against the bundle and leaves
// the resulting session in sessionStore. The remote identity key is saved to
// identityKeyStore through the save_identity_key callback.
func ProcessPreKeyBundle(ctx context.Context, bundle *PreKeyBundle, forAddress *Address, sessionStore SessionStore, identityKeyStore IdentityKeyStore) error {
	callbackCtx := NewCallbackContext(ctx)
	defer callbackCtx.Unref()
	signalFfiError := C.signal_process_prekey_bundle(
		bundle.ptr,
		forAddress.ptr,
		callbackCtx.wrapSessionStore(sessionStore),
		callbackCtx.wrapIdentityKeyStore(identityKeyStore),
		C.uint64_t(time.Now().UnixMilli()),
	)
	runtime.KeepAlive(bundle)
	runtime.KeepAlive(forAddress)
	return callbackCtx.wrapError(signalFfiError)
}
