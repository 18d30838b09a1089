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
import "runtime"

// IdentityKey is a long-term identity public key.
type IdentityKey struct {
	publicKey *PublicKey
}

func NewIdentityKeyFromPublicKey(publicKey *PublicKey) *IdentityKey {
	return &IdentityKey{publicKey: publicKey}
}

func NewIdentityKeyFromBytes(bytes []byte) (*IdentityKey, error) {
	publicKey, err := DeserializePublicKey(bytes)
	if err != nil {
		return nil, err
	}
	return &IdentityKey{publicKey: publicKey}, nil
}

func DeserializeIdentityKey(bytes []byte) (*IdentityKey, error) {
	return NewIdentityKeyFromBytes(bytes)
}

func (i *IdentityKey) Serialize() ([]byte, error) {
	return i.publicKey.Serialize()
}

func (i *IdentityKey) TrySerialize() []byte {
	serialized, err := i.Serialize()
	if err != nil {
		return nil
	}
	return serialized
}

func (i *IdentityKey) GetPublicKey() *PublicKey {
	return i.publicKey
}

func (i *IdentityKey) Equal(other *IdentityKey) (bool, error) {
	comparison, err := i.publicKey.Compare(other.publicKey)
	if err != nil {
		return false, err
	}
	return comparison == 0, nil
}

func (i *IdentityKey) VerifySignature(message, signature []byte) (bool, error) {
	return i.publicKey.Verify(message, signature)
}

// IdentityKeyPair is a long-term identity key pair.
type IdentityKeyPair struct {
	publicKey  *PublicKey
	privateKey *PrivateKey
}

func GenerateIdentityKeyPair() (*IdentityKeyPair, error) {
	privateKey, err := GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	publicKey, err := privateKey.GetPublicKey()
	if err != nil {
		return nil, err
	}
	return &IdentityKeyPair{publicKey: publicKey, privateKey: privateKey}, nil
}

func NewIdentityKeyPair(publicKey *PublicKey, privateKey *PrivateKey) *IdentityKeyPair {
	return &IdentityKeyPair{publicKey: publicKey, privateKey: privateKey}
}

func DeserializeIdentityKeyPair(bytes []byte) (*IdentityKeyPair, error) {
	var privateKey *C.SignalPrivateKey
	var publicKey *C.SignalPublicKey
	signalFfiError := C.signal_identitykeypair_deserialize(&privateKey, &publicKey, BytesToBuffer(bytes))
	runtime.KeepAlive(bytes)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return &IdentityKeyPair{publicKey: wrapPublicKey(publicKey), privateKey: wrapPrivateKey(privateKey)}, nil
}

func (ikp *IdentityKeyPair) Serialize() ([]byte, error) {
	var serialized C.SignalOwnedBuffer = C.SignalOwnedBuffer{}
	signalFfiError := C.signal_identitykeypair_serialize(&serialized, ikp.publicKey.ptr, ikp.privateKey.ptr)
	runtime.KeepAlive(ikp)
	if signalFfiError != nil {
		return nil, wrapError(signalFfiError)
	}
	return CopySignalOwnedBufferToBytes(serialized), nil
}

func (ikp *IdentityKeyPair) GetIdentityKey() *IdentityKey {
	return NewIdentityKeyFromPublicKey(ikp.publicKey)
}

func (ikp *IdentityKeyPair) GetPublicKey() *PublicKey {
	return ikp.publicKey
}

func (ikp *IdentityKeyPair) GetPrivateKey() *PrivateKey {
	return ikp.privateKey
}
