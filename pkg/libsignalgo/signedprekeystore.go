package libsignalgo

/*
#include "./libsignal-ffi.h"

typedef const SignalSignedPreKeyRecord const_signed_pre_key_record;

extern int signal_load_signed_pre_key_callback(void *store_ctx, SignalSignedPreKeyRecord **recordp, uint32_t id);
extern int signal_store_signed_pre_key_callback(void *store_ctx, uint32_t id, const_signed_pre_key_record *record);
*/
import "C"
import (
	"context"
	"unsafe"
)

// SignedPreKeyStore holds the medium-term signed pre keys.
type SignedPreKeyStore interface {
	LoadSignedPreKey(ctx context.Context, id uint32) (*SignedPreKeyRecord, error)
	StoreSignedPreKey(ctx context.Context, id uint32, record *SignedPreKeyRecord) error
}

func (ctx *CallbackContext) wrapSignedPreKeyStore(store SignedPreKeyStore) *C.SignalSignedPreKeyStore {
	return &C.SignalSignedPreKeyStore{
		ctx:                  saveStorePointer(ctx, store),
		load_signed_pre_key:  C.SignalLoadSignedPreKeyCallback(C.signal_load_signed_pre_key_callback),
		store_signed_pre_key: C.SignalStoreSignedPreKeyCallback(C.signal_store_signed_pre_key_callback),
	}
}

//export signal_load_signed_pre_key_callback
func signal_load_signed_pre_key_callback(storeCtx unsafe.Pointer, recordp **C.SignalSignedPreKeyRecord, id C.uint32_t) C.int {
	return C.int(runStoreCallback(storeCtx, func(store SignedPreKeyStore, ctx context.Context) error {
		record, err := store.LoadSignedPreKey(ctx, uint32(id))
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

//export signal_store_signed_pre_key_callback
func signal_store_signed_pre_key_callback(storeCtx unsafe.Pointer, id C.uint32_t, record *C.const_signed_pre_key_record) C.int {
	return C.int(runStoreCallback(storeCtx, func(store SignedPreKeyStore, ctx context.Context) error {
		cloned, err := (&SignedPreKeyRecord{ptr: (*C.SignalSignedPreKeyRecord)(unsafe.Pointer(record))}).Clone()
		if err != nil {
			return err
		}
		return store.StoreSignedPreKey(ctx, uint32(id), cloned)
	}))
}
