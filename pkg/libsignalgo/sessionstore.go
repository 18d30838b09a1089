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
typedef const SignalSessionRecord const_session_record;

extern int signal_load_session_callback(void *store_ctx, SignalSessionRecord **recordp, const_address *address);
extern int signal_store_session_callback(void *store_ctx, const_address *address, const_session_record *record);
*/
import "C"
import (
	"context"
	"unsafe"
)

// SessionStore is kept in sync with the ratchet as messages are encrypted
// and decrypted. Both callbacks run synchronously inside native calls, so
// implementations must not call back into libsignal.
type SessionStore interface {
	LoadSession(ctx context.Context, address *Address) (*SessionRecord, error)
	StoreSession(ctx context.Context, address *Address, record *SessionRecord) error
}

func (ctx *CallbackContext) wrapSessionStore(store SessionStore) *C.SignalSessionStore {
	return &C.SignalSessionStore{
		ctx:           saveStorePointer(ctx, store),
		load_session:  C.SignalLoadSessionCallback(C.signal_load_session_callback),
		store_session: C.SignalStoreSessionCallback(C.signal_store_session_callback),
	}
}

//export signal_load_session_callback
func signal_load_session_callback(storeCtx unsafe.Pointer, recordp **C.SignalSessionRecord, address *C.const_address) C.int {
	return C.int(runStoreCallback(storeCtx, func(store SessionStore, ctx context.Context) error {
		record, err := store.LoadSession(ctx, &Address{ptr: (*C.SignalAddress)(unsafe.Pointer(address))})
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

//export signal_store_session_callback
func signal_store_session_callback(storeCtx unsafe.Pointer, address *C.const_address, record *C.const_session_record) C.int {
	return C.int(runStoreCallback(storeCtx, func(store SessionStore, ctx context.Context) error {
		cloned, err := (&SessionRecord{ptr: (*C.SignalSessionRecord)(unsafe.Pointer(record))}).Clone()
		if err != nil {
			return err
		}
		return store.StoreSession(ctx, &Address{ptr: (*C.SignalAddress)(unsafe.Pointer(address))}, cloned)
	}))
}
