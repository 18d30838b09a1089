package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import "runtime"

type FingerprintVersion uint32

const (
	FingerprintVersionV1 FingerprintVersion = 1
	FingerprintVersionV2 FingerprintVersion = 2
)

// Fingerprint is a comparable digest of two identity keys, used for safety
// number verification between two agents.
type Fingerprint struct {
	ptr *C.SignalFingerprint
}

func wrapFingerprint(ptr *C.SignalFingerprint) *Fingerprint {
	fingerprint := &Fingerprint{ptr: ptr}
	runtime.SetFinalizer(fingerprint, (*Fingerprint).Destroy)
	return fingerprint
}

func NewFingerprint(
	iterations uint32,
	version FingerprintVersion,
	localIdentifier []byte,
	localKey *PublicKey,
	remoteIdentifier []byte,
	remoteKey *PublicKey,
) (*Fingerprint, error) {
	var fp *C.SignalFingerprint
	signalFfiError := C.signal_fingerprint_new(
		&fp,
		C.uint32_t(iterations),
		C.uint32_t(version),
		BytesToBuffer(localIdentifier),
		localKey.ptr,
		BytesToBuffer(remoteIdentifier),
		remoteKey.ptr,
	)
	runtime.KeepAlive(localIdentifier)
	runtime.KeepAlive(localKey)
	runtime.KeepAlive(remoteIdentifier)
	runtime.KeepAlive(remoteKey)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapFingerprint(fp), nil
}

func (f *Fingerprint) Destroy() error {
	runtime.SetFinalizer(f, nil)
	return wrapError(C.signal_fingerprint_destroy(f.ptr))
}

// DisplayString returns the sixty-digit numeric safety number. Both sides of
// a conversation compute the same string.
func (f *Fingerprint) DisplayString() (string, error) {
	var displayString *C.char
	signalFfiError := C.signal_fingerprint_display_string(&displayString, f.ptr)
	runtime.KeepAlive(f)
	if signalFfiError != nil {
		return "", wrapError(signalFfiError)
	}
	return CopyCStringToString(displayString), nil
}

// ScannableEncoding returns the QR form of the fingerprint.
func (f *Fingerprint) ScannableEncoding() ([]byte, error) {
	var scannable C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_fingerprint_scannable_encoding(&scannable, f.ptr)
	runtime.KeepAlive(f)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(scannable), nil
}

// CompareFingerprints checks two scannable encodings against each other, eg.
// a locally computed one against one scanned from the peer's QR code.
func CompareFingerprints(fprint1, fprint2 []byte) (bool, error) {
	var matches C.bool
	signalFfiError := C.signal_fingerprint_compare(&matches, BytesToBuffer(fprint1), BytesToBuffer(fprint2))
	runtime.KeepAlive(fprint1)
	runtime.KeepAlive(fprint2)
	if signalFfiError != nil {
		return false, wrapError(signalFfiError)
	}
	return bool(matches), nil
}
