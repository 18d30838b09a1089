package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import "runtime"

type PrivateKey struct {
	ptr *C.SignalPrivateKey
}

func wrapPrivateKey(ptr *C.SignalPrivateKey) *PrivateKey {
	privateKey := &PrivateKey{ptr: ptr}
	runtime.SetFinalizer(privateKey, (*PrivateKey).Destroy)
	return privateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	var pk *C.SignalPrivateKey
	signalFfiError := C.signal_privatekey_generate(&pk)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPrivateKey(pk), nil
}

func DeserializePrivateKey(keyData []byte) (*PrivateKey, error) {
	var pk *C.SignalPrivateKey
	signalFfiError := C.signal_privatekey_deserialize(&pk, BytesToBuffer(keyData))
	runtime.KeepAlive(keyData)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPrivateKey(pk), nil
}

func (pk *PrivateKey) Clone() (*PrivateKey, error) {
	var cloned *C.SignalPrivateKey
	signalFfiError := C.signal_privatekey_clone(&cloned, pk.ptr)
	runtime.KeepAlive(pk)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPrivateKey(cloned), nil
}

func (pk *PrivateKey) Destroy() error {
	pk.CancelFinalizer()
	return wrapError(C.signal_privatekey_destroy(pk.ptr))
}

// CancelFinalizer detaches the automatic destroy. Used when ownership of the
// underlying pointer is handed over to libsignal.
func (pk *PrivateKey) CancelFinalizer() {
	runtime.SetFinalizer(pk, nil)
}

func (pk *PrivateKey) GetPublicKey() (*PublicKey, error) {
	var pub *C.SignalPublicKey
	signalFfiError := C.signal_privatekey_get_public_key(&pub, pk.ptr)
	runtime.KeepAlive(pk)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapPublicKey(pub), nil
}

func (pk *PrivateKey) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_privatekey_serialize(&serialized, pk.ptr)
	runtime.KeepAlive(pk)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

// Sign produces an XEdDSA signature over message with this key.
func (pk *PrivateKey) Sign(message []byte) ([]byte, error) {
	var signed C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_privatekey_sign(&signed, pk.ptr, BytesToBuffer(message))
	runtime.KeepAlive(pk)
	runtime.KeepAlive(message)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(signed), nil
}
