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
	"runtime"
	"time"
)

// KyberKeyPair is a post-quantum KEM key pair used for PQXDH.
type KyberKeyPair struct {
	ptr *C.SignalKyberKeyPair
}

type KyberPublicKey struct {
	ptr *C.SignalKyberPublicKey
}

type KyberSecretKey struct {
	ptr *C.SignalKyberSecretKey
}

func wrapKyberKeyPair(ptr *C.SignalKyberKeyPair) *KyberKeyPair {
	keyPair := &KyberKeyPair{ptr: ptr}
	runtime.SetFinalizer(keyPair, (*KyberKeyPair).Destroy)
	return keyPair
}

func wrapKyberPublicKey(ptr *C.SignalKyberPublicKey) *KyberPublicKey {
	publicKey := &KyberPublicKey{ptr: ptr}
	runtime.SetFinalizer(publicKey, (*KyberPublicKey).Destroy)
	return publicKey
}

func wrapKyberSecretKey(ptr *C.SignalKyberSecretKey) *KyberSecretKey {
	secretKey := &KyberSecretKey{ptr: ptr}
	runtime.SetFinalizer(secretKey, (*KyberSecretKey).Destroy)
	return secretKey
}

func KyberKeyPairGenerate() (*KyberKeyPair, error) {
	var kp *C.SignalKyberKeyPair
	signalFfiError := C.signal_kyber_key_pair_generate(&kp)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberKeyPair(kp), nil
}

func (kp *KyberKeyPair) GetPublicKey() (*KyberPublicKey, error) {
	var pub *C.SignalKyberPublicKey
	signalFfiError := C.signal_kyber_key_pair_get_public_key(&pub, kp.ptr)
	runtime.KeepAlive(kp)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPublicKey(pub), nil
}

func (kp *KyberKeyPair) Destroy() error {
	runtime.SetFinalizer(kp, nil)
	return wrapError(C.signal_kyber_key_pair_destroy(kp.ptr))
}

func DeserializeKyberPublicKey(keyData []byte) (*KyberPublicKey, error) {
	var pub *C.SignalKyberPublicKey
	signalFfiError := C.signal_kyber_public_key_deserialize(&pub, BytesToBuffer(keyData))
	runtime.KeepAlive(keyData)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPublicKey(pub), nil
}

func (kpk *KyberPublicKey) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_kyber_public_key_serialize(&serialized, kpk.ptr)
	runtime.KeepAlive(kpk)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (kpk *KyberPublicKey) Destroy() error {
	runtime.SetFinalizer(kpk, nil)
	return wrapError(C.signal_kyber_public_key_destroy(kpk.ptr))
}

func (ksk *KyberSecretKey) Destroy() error {
	runtime.SetFinalizer(ksk, nil)
	return wrapError(C.signal_kyber_secret_key_destroy(ksk.ptr))
}

// KyberPreKeyRecord is a stored last-resort or one-time kyber prekey,
// signed by the identity key.
type KyberPreKeyRecord struct {
	ptr *C.SignalKyberPreKeyRecord
}

func wrapKyberPreKeyRecord(ptr *C.SignalKyberPreKeyRecord) *KyberPreKeyRecord {
	record := &KyberPreKeyRecord{ptr: ptr}
	runtime.SetFinalizer(record, (*KyberPreKeyRecord).Destroy)
	return record
}

func NewKyberPreKeyRecord(id uint32, timestamp time.Time, keyPair *KyberKeyPair, signature []byte) (*KyberPreKeyRecord, error) {
	var kpkr *C.SignalKyberPreKeyRecord
	signalFfiError := C.signal_kyber_pre_key_record_new(
		&kpkr,
		C.uint32_t(id),
		C.uint64_t(timestamp.UnixMilli()),
		keyPair.ptr,
		BytesToBuffer(signature),
	)
	runtime.KeepAlive(keyPair)
	runtime.KeepAlive(signature)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPreKeyRecord(kpkr), nil
}

func DeserializeKyberPreKeyRecord(serialized []byte) (*KyberPreKeyRecord, error) {
	var kpkr *C.SignalKyberPreKeyRecord
	signalFfiError := C.signal_kyber_pre_key_record_deserialize(&kpkr, BytesToBuffer(serialized))
	runtime.KeepAlive(serialized)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPreKeyRecord(kpkr), nil
}

func (kpkr *KyberPreKeyRecord) Clone() (*KyberPreKeyRecord, error) {
	var cloned *C.SignalKyberPreKeyRecord
	signalFfiError := C.signal_kyber_pre_key_record_clone(&cloned, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPreKeyRecord(cloned), nil
}

func (kpkr *KyberPreKeyRecord) Destroy() error {
	kpkr.CancelFinalizer()
	return wrapError(C.signal_kyber_pre_key_record_destroy(kpkr.ptr))
}

func (kpkr *KyberPreKeyRecord) CancelFinalizer() {
	runtime.SetFinalizer(kpkr, nil)
}

func (kpkr *KyberPreKeyRecord) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_kyber_pre_key_record_serialize(&serialized, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (kpkr *KyberPreKeyRecord) GetID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_kyber_pre_key_record_get_id(&id, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}

func (kpkr *KyberPreKeyRecord) GetTimestamp() (time.Time, error) {
	var ts C.uint64_t
	signalFfiError := C.signal_kyber_pre_key_record_get_timestamp(&ts, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return time.Time{}, wrapError(signalFfiError)
	}
	return time.UnixMilli(int64(ts)), nil
}

func (kpkr *KyberPreKeyRecord) GetPublicKey() (*KyberPublicKey, error) {
	var pub *C.SignalKyberPublicKey
	signalFfiError := C.signal_kyber_pre_key_record_get_public_key(&pub, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberPublicKey(pub), nil
}

func (kpkr *KyberPreKeyRecord) GetSecretKey() (*KyberSecretKey, error) {
	var secret *C.SignalKyberSecretKey
	signalFfiError := C.signal_kyber_pre_key_record_get_secret_key(&secret, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapKyberSecretKey(secret), nil
}

func (kpkr *KyberPreKeyRecord) GetSignature() ([]byte, error) {
	var signature C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_kyber_pre_key_record_get_signature(&signature, kpkr.ptr)
	runtime.KeepAlive(kpkr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(signature), nil
}
