package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import (
	"runtime"
	"time"
)

// SignedPreKeyRecord is a stored medium-term EC prekey signed by the
// identity key.
type SignedPreKeyRecord struct {
	ptr *C.SignalSignedPreKeyRecord
}

func wrapSignedPreKeyRecord(ptr *C.SignalSignedPreKeyRecord) *SignedPreKeyRecord {
	record := &SignedPreKeyRecord{ptr: ptr}
	runtime.SetFinalizer(record, (*SignedPreKeyRecord).Destroy)
	return record
}

func NewSignedPreKeyRecord(id uint32, timestamp time.Time, publicKey *PublicKey, privateKey *PrivateKey, signature []byte) (*SignedPreKeyRecord, error) {
	var spkr *C.SignalSignedPreKeyRecord
	signalFfiError := C.signal_signed_pre_key_record_new(
		&spkr,
		C.uint32_t(id),
		C.uint64_t(timestamp.UnixMilli()),
		publicKey.ptr,
		privateKey.ptr,
		BytesToBuffer(signature),
	)
	runtime.KeepAlive(publicKey)
	runtime.KeepAlive(privateKey)
	runtime.KeepAlive(signature)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapSignedPreKeyRecord(spkr), nil
}

func NewSignedPreKeyRecordFromPrivateKey(id uint32, timestamp time.Time, privateKey *PrivateKey, signature []byte) (*SignedPreKeyRecord, error) {
	publicKey, err := privateKey.GetPublicKey()
	if err != nil {
		return nil, err
	}
	return NewSignedPreKeyRecord(id, timestamp, publicKey, privateKey, signature)
}

func DeserializeSignedPreKeyRecord(serialized []byte) (*SignedPreKeyRecord, error) {
	var spkr *C.SignalSignedPreKeyRecord
	signalFfiError := C.signal_signed_pre_key_record_deserialize(&spkr, BytesToBuffer(serialized))
	runtime.KeepAlive(serialized)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapSignedPreKeyRecord(spkr), nil
}

func (spkr *SignedPreKeyRecord) Clone() (*SignedPreKeyRecord, error) {
	var cloned *C.SignalSignedPreKeyRecord
	signalFfiError := C.signal_signed_pre_key_record_clone(&cloned, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapSignedPreKeyRecord(cloned), nil
}

func (spkr *SignedPreKeyRecord) Destroy() error {
	spkr.CancelFinalizer()
	return wrapError(C.signal_signed_pre_key_record_destroy(spkr.ptr))
}

func (spkr *SignedPreKeyRecord) CancelFinalizer() {
	runtime.SetFinalizer(spkr, nil)
}

func (spkr *SignedPreKeyRecord) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_signed_pre_key_record_serialize(&serialized, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (spkr *SignedPreKeyRecord) GetID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_signed_pre_key_record_get_id(&id, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}

func (spkr *SignedPreKeyRecord) GetTimestamp() (time.Time, error) {
	var ts C.uint64_t
	signalFfiError := C.signal_signed_pre_key_record_get_timestamp(&ts, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return time.Time{}, wrapError(signalFfiError)
	}
	return time.UnixMilli(int64(ts)), nil
}

func (spkr *SignedPreKeyRecord) GetPublicKey() (*PublicKey, error) {
	var pub *C.SignalPublicKey
	signalFfiError := C.signal_signed_pre_key_record_get_public_key(&pub, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPublicKey(pub), nil
}

func (spkr *SignedPreKeyRecord) GetPrivateKey() (*PrivateKey, error) {
	var priv *C.SignalPrivateKey
	signalFfiError := C.signal_signed_pre_key_record_get_private_key(&priv, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPrivateKey(priv), nil
}

func (spkr *SignedPreKeyRecord) GetSignature() ([]byte, error) {
	var signature C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_signed_pre_key_record_get_signature(&signature, spkr.ptr)
	runtime.KeepAlive(spkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(signature), nil
}
