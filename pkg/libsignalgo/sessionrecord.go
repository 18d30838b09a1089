package libsignalgo

/*
#include "./libsignal-ffi.h"
*/
import "C"
import "runtime"

// SessionRecord holds the ratchet state for one (agent, device) pair.
type SessionRecord struct {
	ptr *C.SignalSessionRecord
}

func wrapSessionRecord(ptr *C.SignalSessionRecord) *SessionRecord {
	record := &SessionRecord{ptr: ptr}
	runtime.SetFinalizer(record, (*SessionRecord).Destroy)
	return record
}

func DeserializeSessionRecord(serialized []byte) (*SessionRecord, error) {
	var sr *C.SignalSessionRecord
	signalFfiError := C.signal_session_record_deserialize(&sr, BytesToBuffer(serialized))
	runtime.KeepAlive(serialized)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapSessionRecord(sr), nil
}

func (sr *SessionRecord) Clone() (*SessionRecord, error) {
	var cloned *C.SignalSessionRecord
	signalFfiError := C.signal_session_record_clone(&cloned, sr.ptr)
	runtime.KeepAlive(sr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return wrapSessionRecord(cloned), nil
}

func (sr *SessionRecord) Destroy() error {
	sr.CancelFinalizer()
	return wrapError(C.signal_session_record_destroy(sr.ptr))
}

func (sr *SessionRecord) CancelFinalizer() {
	runtime.SetFinalizer(sr, nil)
}

func (sr *SessionRecord) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_session_record_serialize(&serialized, sr.ptr)
	runtime.KeepAlive(sr)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

// ArchiveCurrentState moves the current ratchet chain into the archive,
// forcing the next handshake to start fresh.
func (sr *SessionRecord) ArchiveCurrentState() error {
	signalFfiError := C.signal_session_record_archive_current_state(sr.ptr)
	runtime.KeepAlive(sr)
	return wrapError(signalFfiError)
}

func (sr *SessionRecord) HasCurrentState() (bool, error) {
	var result C.bool
	signalFfiError := C.signal_session_record_has_current_state(&result, sr.ptr)
	runtime.KeepAlive(sr)
	if signalFfiError != nil {
		return false, wrapError(signalFfiError)
	}
	return bool(result), nil
}

func (sr *SessionRecord) CurrentRatchetKeyMatches(key *PublicKey) (bool, error) {
	var result C.bool
	signalFfiError := C.signal_session_record_current_ratchet_key_matches(&result, sr.ptr, key.ptr)
	runtime.KeepAlive(sr)
	runtime.KeepAlive(key)
	if signalFfiError != nil {
		return false, wrapError(signalFfiError)
	}
	return bool(result), nil
}

func (sr *SessionRecord) GetLocalRegistrationID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_session_record_get_local_registration_id(&id, sr.ptr)
	runtime.KeepAlive(sr)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}

func (sr *SessionRecord) GetRemoteRegistrationID() (uint32, error) {
	var id C.uint32_t
	signalFfiError := C.signal_session_record_get_remote_registration_id(&id, sr.ptr)
	runtime.KeepAlive(sr)
	if signalFfiError != nil {
		return 0, wrapError(signalFfiError)
	}
	return uint32(id), nil
}
