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

typedef const SignalAddress const_address;
typedef const SignalPublicKey const_public_key;

extern int signal_get_identity_key_pair_callback(void *store_ctx, SignalPrivateKey **keyp);
extern int signal_get_local_registration_id_callback(void *store_ctx, uint32_t *idp);
extern int signal_save_identity_key_callback(void *store_ctx, const_address *address, const_public_key *public_key);
extern int signal_get_identity_key_callback(void *store_ctx, SignalPublicKey **public_keyp, const_address *address);
extern int signal_is_trusted_identity_callback(void *store_ctx, const_address *address, const_public_key *public_key, unsigned int direction);
*/
import "C"
import (
	"context"
	"unsafe"
)

type SignalDirection uint

const (
	SignalDirectionSending   SignalDirection = 0
	SignalDirectionReceiving SignalDirection = 1
)

// IdentityKeyStore holds the local identity key pair and the identity keys
// learned from remote peers. SaveIdentityKey returns whether an existing
// key for the address was replaced, which callers surface as a key change
// notification.
type IdentityKeyStore interface {
	GetIdentityKeyPair(ctx context.Context) (*IdentityKeyPair, error)
	GetLocalRegistrationID(ctx context.Context) (uint32, error)
	SaveIdentityKey(ctx context.Context, address *Address, identityKey *IdentityKey) (bool, error)
	GetIdentityKey(ctx context.Context, address *Address) (*IdentityKey, error)
	IsTrustedIdentity(ctx context.Context, address *Address, identityKey *IdentityKey, direction SignalDirection) (bool, error)
}

func (ctx *CallbackContext) wrapIdentityKeyStore(store IdentityKeyStore) *C.SignalIdentityKeyStore {
	return &C.SignalIdentityKeyStore{
		ctx:                       saveStorePointer(ctx, store),
		get_identity_key_pair:     C.SignalGetIdentityKeyPairCallback(C.signal_get_identity_key_pair_callback),
		get_local_registration_id: C.SignalGetLocalRegistrationIdCallback(C.signal_get_local_registration_id_callback),
		save_identity:             C.SignalSaveIdentityKeyCallback(C.signal_save_identity_key_callback),
		get_identity:              C.SignalGetIdentityKeyCallback(C.signal_get_identity_key_callback),
		is_trusted_identity:       C.SignalIsTrustedIdentityCallback(C.signal_is_trusted_identity_callback),
	}
}

//export signal_get_identity_key_pair_callback
func signal_get_identity_key_pair_callback(storeCtx unsafe.Pointer, keyp **C.SignalPrivateKey) C.int {
	return C.int(runStoreCallback(storeCtx, func(store IdentityKeyStore, ctx context.Context) error {
		keyPair, err := store.GetIdentityKeyPair(ctx)
		if err != nil || keyPair == nil {
			return err
		}
		cloned, err := keyPair.privateKey.Clone()
		if err != nil {
			return err
		}
		cloned.CancelFinalizer()
		*keyp = cloned.ptr
		return nil
	}))
}

//export signal_get_local_registration_id_callback
func signal_get_local_registration_id_callback(storeCtx unsafe.Pointer, idp *C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store IdentityKeyStore, ctx context.Context) error {
		registrationID, err := store.GetLocalRegistrationID(ctx)
		if err != nil {
			return err
		}
		*idp = C.uint32_t(registrationID)
		return nil
	}))
}

//export signal_save_identity_key_callback
func signal_save_identity_key_callback(storeCtx unsafe.Pointer, address *C.const_address, publicKey *C.const_public_key) C.int {
	return C.int(runStoreValueCallback(storeCtx, func(store IdentityKeyStore, ctx context.Context) (int, error) {
		cloned, err := (&PublicKey{ptr: (*C.SignalPublicKey)(unsafe.Pointer(publicKey))}).Clone()
		if err != nil {
			return 0, err
		}
		replaced, err := store.SaveIdentityKey(
			ctx,
			&Address{ptr: (*C.SignalAddress)(unsafe.Pointer(address))},
			NewIdentityKeyFromPublicKey(cloned),
		)
		if err != nil {
			return 0, err
		}
		if replaced {
			return 1, nil
		}
		return 0, nil
	}))
}

//export signal_get_identity_key_callback
func signal_get_identity_key_callback(storeCtx unsafe.Pointer, publicKeyp **C.SignalPublicKey, address *C.const_address) C.int {
	return C.int(runStoreCallback(storeCtx, func(store IdentityKeyStore, ctx context.Context) error {
		identity, err := store.GetIdentityKey(ctx, &Address{ptr: (*C.SignalAddress)(unsafe.Pointer(address))})
		if err != nil || identity == nil {
			return err
		}
		cloned, err := identity.publicKey.Clone()
		if err != nil {
			return err
		}
		cloned.CancelFinalizer()
		*publicKeyp = cloned.ptr
		return nil
	}))
}

//export signal_is_trusted_identity_callback
func signal_is_trusted_identity_callback(storeCtx unsafe.Pointer, address *C.const_address, publicKey *C.const_public_key, direction C.uint) C.int {
	return C.int(runStoreValueCallback(storeCtx, func(store IdentityKeyStore, ctx context.Context) (int, error) {
		cloned, err := (&PublicKey{ptr: (*C.SignalPublicKey)(unsafe.Pointer(publicKey))}).Clone()
		if err != nil {
			return 0, err
		}
		trusted, err := store.IsTrustedIdentity(
			ctx,
			&Address{ptr: (*C.SignalAddress)(unsafe.Pointer(address))},
			NewIdentityKeyFromPublicKey(cloned),
			SignalDirection(direction),
		)
		if err != nil {
			return 0, err
		}
		if trusted {
			return 1, nil
		}
		return 0, nil
	}))
}
