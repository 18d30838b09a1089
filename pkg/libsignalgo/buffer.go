package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import "unsafe"

// BytesToBuffer borrows a Go slice as a SignalBorrowedBuffer. The slice must
// be kept alive for the duration of the C call it is passed to.
func BytesToBuffer(data []byte) C.SignalBorrowedBuffer {
	buf := C.SignalBorrowedBuffer{
		length: C.uintptr_t(len(data)),
	}
	if len(data) > 0 {
		buf.base = (*C.uchar)(unsafe.Pointer(&data[0]))
	}
	return buf
}

func EmptyBorrowedBuffer() C.SignalBorrowedBuffer {
	return C.SignalBorrowedBuffer{}
}

// CopySignalOwnedBufferToBytes copies a buffer allocated by libsignal into Go
// memory and frees the original.
func CopySignalOwnedBufferToBytes(buffer C.SignalOwnedBuffer) []byte {
	data := C.GoBytes(unsafe.Pointer(buffer.base), C.int(buffer.length))
	C.signal_free_buffer(buffer.base, buffer.length)
	return data
}

// CopyCStringToString copies a string allocated by libsignal into Go memory
// and frees the original.
func CopyCStringToString(cString *C.char) string {
	str := C.GoString(cString)
	C.signal_free_string(cString)
	return str
}
