package libsignalgo

/*
#cgo LDFLAGS: -lsignal_ffi -ldl -lm
#include "./libsignal-ffi.h"
#include <stdlib.h>
*/
import "C"
import (
	"runtime"
	"unsafe"
)

// Address identifies one device of one agent in the protocol store.
type Address struct {
	ptr *C.SignalAddress
}

func wrapAddress(ptr *C.SignalAddress) *Address {
	address := &Address{ptr: ptr}
	runtime.SetFinalizer(address, (*Address).Destroy)
	return address
}

func NewAddress(name string, deviceID uint) (*Address, error) {
	var pa *C.SignalAddress
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	signalFfiError := C.signal_address_new(&pa, cName, C.uint32_t(deviceID))
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapAddress(pa), nil
}

func (pa *Address) Clone() (*Address, error) {
	var cloned *C.SignalAddress
	signalFfiError := C.signal_address_clone(&cloned, pa.ptr)
	runtime.KeepAlive(pa)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapAddress(cloned), nil
}

func (pa *Address) Destroy() error {
	runtime.SetFinalizer(pa, nil)
	return wrapError(C.signal_address_destroy(pa.ptr))
}

func (pa *Address) Name() (string, error) {
	var name *C.char
	signalFfiError := C.signal_address_get_name(&name, pa.ptr)
	runtime.KeepAlive(pa)
	if signalFfiError != nil {
		return "", wrapError(signalFfiError)
	}
	return CopyCStringToString(name), nil
}

func (pa *Address) DeviceID() (uint, error) {
	var deviceID C.uint32_t
	signalFfiError := C.signal_address_get_device_id(&deviceID, pa.ptr)
	runtime.KeepAlive(pa)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint(deviceID), nil
}
