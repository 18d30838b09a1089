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

typedef const SignalPreKeyRecord const_pre_key_record;

extern int signal_load_pre_key_callback(void *store_ctx, SignalPreKeyRecord **recordp, uint32_t id);
extern int signal_store_pre_key_callback(void *store_ctx, uint32_t id, const_pre_key_record *record);
extern int signal_remove_pre_key_callback(void *store_ctx, uint32_t id);
*/
import "C"
import (
	"context"
	"unsafe"
)

// PreKeyStore holds the one-time EC pre keys. RemovePreKey is invoked by
// libsignal after a pre key message consumes the key.
type PreKeyStore interface {
	LoadPreKey(ctx context.Context, id uint32) (*PreKeyRecord, error)
	StorePreKey(ctx context.Context, id uint32, record *PreKeyRecord) error
	RemovePreKey(ctx context.Context, id uint32) error
}

func (ctx *CallbackContext) wrapPreKeyStore(store PreKeyStore) *C.SignalPreKeyStore {
	return &C.SignalPreKeyStore{
		ctx:            saveStorePointer(ctx, store),
		load_pre_key:   C.SignalLoadPreKeyCallback(C.signal_load_pre_key_callback),
		store_pre_key:  C.SignalStorePreKeyCallback(C.signal_store_pre_key_callback),
		remove_pre_key: C.SignalRemovePreKeyCallback(C.signal_remove_pre_key_callback),
	}
}

//export signal_load_pre_key_callback
func signal_load_pre_key_callback(storeCtx unsafe.Pointer, recordp **C.SignalPreKeyRecord, id C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store PreKeyStore, ctx context.Context) error {
		record, err := store.LoadPreKey(ctx, uint32(id))
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

//export signal_store_pre_key_callback
func signal_store_pre_key_callback(storeCtx unsafe.Pointer, id C.uint32_t, record *C.const_pre_key_record) C.int {
	return C.int(runStoreCallback(storeCtx, func(store PreKeyStore, ctx context.Context) error {
		cloned, err := (&PreKeyRecord{ptr: (*C.SignalPreKeyRecord)(unsafe.Pointer(record))}).Clone()
		if err != nil {
			return err
		}
		return store.StorePreKey(ctx, uint32(id), cloned)
	}))
}

//export signal_remove_pre_key_callback
func signal_remove_pre_key_callback(storeCtx unsafe.Pointer, id C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store PreKeyStore, ctx context.Context) error {
		return store.RemovePreKey(ctx, uint32(id))
	}))
}
