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

typedef const SignalKyberPreKeyRecord const_kyber_pre_key_record;

extern int signal_load_kyber_pre_key_callback(void *store_ctx, SignalKyberPreKeyRecord **recordp, uint32_t id);
extern int signal_store_kyber_pre_key_callback(void *store_ctx, uint32_t id, const_kyber_pre_key_record *record);
extern int signal_mark_kyber_pre_key_used_callback(void *store_ctx, uint32_t id);
*/
import "C"
import (
	"context"
	"unsafe"
)

// KyberPreKeyStore holds the post-quantum pre keys. MarkKyberPreKeyUsed is
// invoked after a pre key message consumes the key; one-time keys should be
// removed there while last-resort keys stay.
type KyberPreKeyStore interface {
	LoadKyberPreKey(ctx context.Context, id uint32) (*KyberPreKeyRecord, error)
	StoreKyberPreKey(ctx context.Context, id uint32, record *KyberPreKeyRecord) error
	MarkKyberPreKeyUsed(ctx context.Context, id uint32) error
}

func (ctx *CallbackContext) wrapKyberPreKeyStore(store KyberPreKeyStore) *C.SignalKyberPreKeyStore {
	return &C.SignalKyberPreKeyStore{
		ctx:                     saveStorePointer(ctx, store),
		load_kyber_pre_key:      C.SignalLoadKyberPreKeyCallback(C.signal_load_kyber_pre_key_callback),
		store_kyber_pre_key:     C.SignalStoreKyberPreKeyCallback(C.signal_store_kyber_pre_key_callback),
		mark_kyber_pre_key_used: C.SignalMarkKyberPreKeyUsedCallback(C.signal_mark_kyber_pre_key_used_callback),
	}
}

//export signal_load_kyber_pre_key_callback
func signal_load_kyber_pre_key_callback(storeCtx unsafe.Pointer, recordp **C.SignalKyberPreKeyRecord, id C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store KyberPreKeyStore, ctx context.Context) error {
		record, err := store.LoadKyberPreKey(ctx, uint32(id))
		if err != nil || record == nil {
			return err
		}
		cloned, err := record.Clone()
		if err != nil {
			return err
		}
		cloned.CancelFinalizer()
		*recordp = cloned.ptr
		return nil
	}))
}

//export signal_store_kyber_pre_key_callback
func signal_store_kyber_pre_key_callback(storeCtx unsafe.Pointer, id C.uint32_t, record *C.const_kyber_pre_key_record) C.int {
	return C.int(runStoreCallback(storeCtx, func(store KyberPreKeyStore, ctx context.Context) error {
		cloned, err := (&KyberPreKeyRecord{ptr: (*C.SignalKyberPreKeyRecord)(unsafe.Pointer(record))}).Clone()
		if err != nil {
			return err
		}
		return store.StoreKyberPreKey(ctx, uint32(id), cloned)
	}))
}

//export signal_mark_kyber_pre_key_used_callback
func signal_mark_kyber_pre_key_used_callback(storeCtx unsafe.Pointer, id C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store KyberPreKeyStore, ctx context.Context) error {
		return store.MarkKyberPreKeyUsed(ctx, uint32(id))
	}))
}
