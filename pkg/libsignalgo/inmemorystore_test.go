package libsignalgo_test

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

type AddressKey struct {
	Name     string
	DeviceID uint
}

type InMemorySignalProtocolStore struct {
	privateKeys    *libsignalgo.IdentityKeyPair
	registrationID uint32

	identityKeyMap    map[AddressKey]*libsignalgo.IdentityKey
	preKeyMap         map[uint32]*libsignalgo.PreKeyRecord
	sessionMap        map[AddressKey]*libsignalgo.SessionRecord
	signedPreKeyMap   map[uint32]*libsignalgo.SignedPreKeyRecord
	kyberPreKeyMap    map[uint32]*libsignalgo.KyberPreKeyRecord
	usedKyberPreKeys  map[uint32]bool
	replacedAddresses []AddressKey
}

func NewInMemorySignalProtocolStore() *InMemorySignalProtocolStore {
	identityKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	if err != nil {
		panic(err)
	}

	registrationID, err := rand.Int(rand.Reader, big.NewInt(0x4000))
	if err != nil {
		panic(err)
	}

	return &InMemorySignalProtocolStore{
		privateKeys:    identityKeyPair,
		registrationID: uint32(registrationID.Uint64()),

		identityKeyMap:   make(map[AddressKey]*libsignalgo.IdentityKey),
		preKeyMap:        make(map[uint32]*libsignalgo.PreKeyRecord),
		sessionMap:       make(map[AddressKey]*libsignalgo.SessionRecord),
		signedPreKeyMap:  make(map[uint32]*libsignalgo.SignedPreKeyRecord),
		kyberPreKeyMap:   make(map[uint32]*libsignalgo.KyberPreKeyRecord),
		usedKyberPreKeys: make(map[uint32]bool),
	}
}

func (ps *InMemorySignalProtocolStore) addressKey(address *libsignalgo.Address) (AddressKey, error) {
	name, err := address.Name()
	if err != nil {
		return AddressKey{}, err
	}
	deviceID, err := address.DeviceID()
	if err != nil {
		return AddressKey{}, err
	}
	return AddressKey{name, deviceID}, nil
}

// Implementation of the SessionStore interface

func (ps *InMemorySignalProtocolStore) LoadSession(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.SessionRecord, error) {
	key, err := ps.addressKey(address)
	if err != nil {
		return nil, err
	}
	return ps.sessionMap[key], nil
}

func (ps *InMemorySignalProtocolStore) StoreSession(ctx context.Context, address *libsignalgo.Address, record *libsignalgo.SessionRecord) error {
	key, err := ps.addressKey(address)
	if err != nil {
		return err
	}
	ps.sessionMap[key] = record
	return nil
}

// Implementation of the IdentityKeyStore interface

func (ps *InMemorySignalProtocolStore) GetIdentityKeyPair(ctx context.Context) (*libsignalgo.IdentityKeyPair, error) {
	return ps.privateKeys, nil
}

func (ps *InMemorySignalProtocolStore) GetLocalRegistrationID(ctx context.Context) (uint32, error) {
	return ps.registrationID, nil
}

func (ps *InMemorySignalProtocolStore) SaveIdentityKey(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey) (bool, error) {
	key, err := ps.addressKey(address)
	if err != nil {
		return false, err
	}
	replaced := false
	if existing, ok := ps.identityKeyMap[key]; ok {
		equal, err := existing.Equal(identityKey)
		if err != nil {
			return false, err
		}
		replaced = !equal
	}
	ps.identityKeyMap[key] = identityKey
	if replaced {
		ps.replacedAddresses = append(ps.replacedAddresses, key)
	}
	return replaced, nil
}

func (ps *InMemorySignalProtocolStore) GetIdentityKey(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.IdentityKey, error) {
	key, err := ps.addressKey(address)
	if err != nil {
		return nil, err
	}
	return ps.identityKeyMap[key], nil
}

func (ps *InMemorySignalProtocolStore) IsTrustedIdentity(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey, direction libsignalgo.SignalDirection) (bool, error) {
	key, err := ps.addressKey(address)
	if err != nil {
		return false, err
	}
	if existing, ok := ps.identityKeyMap[key]; ok {
		return existing.Equal(identityKey)
	}
	// Trust on first use
	return true, nil
}

// Implementation of the PreKeyStore interface

func (ps *InMemorySignalProtocolStore) LoadPreKey(ctx context.Context, id uint32) (*libsignalgo.PreKeyRecord, error) {
	return ps.preKeyMap[id], nil
}

func (ps *InMemorySignalProtocolStore) StorePreKey(ctx context.Context, id uint32, record *libsignalgo.PreKeyRecord) error {
	ps.preKeyMap[id] = record
	return nil
}

func (ps *InMemorySignalProtocolStore) RemovePreKey(ctx context.Context, id uint32) error {
	delete(ps.preKeyMap, id)
	return nil
}

// Implementation of the SignedPreKeyStore interface

func (ps *InMemorySignalProtocolStore) LoadSignedPreKey(ctx context.Context, id uint32) (*libsignalgo.SignedPreKeyRecord, error) {
	return ps.signedPreKeyMap[id], nil
}

func (ps *InMemorySignalProtocolStore) StoreSignedPreKey(ctx context.Context, id uint32, record *libsignalgo.SignedPreKeyRecord) error {
	ps.signedPreKeyMap[id] = record
	return nil
}

// Implementation of the KyberPreKeyStore interface

func (ps *InMemorySignalProtocolStore) LoadKyberPreKey(ctx context.Context, id uint32) (*libsignalgo.KyberPreKeyRecord, error) {
	return ps.kyberPreKeyMap[id], nil
}

func (ps *InMemorySignalProtocolStore) StoreKyberPreKey(ctx context.Context, id uint32, record *libsignalgo.KyberPreKeyRecord) error {
	ps.kyberPreKeyMap[id] = record
	return nil
}

func (ps *InMemorySignalProtocolStore) MarkKyberPreKeyUsed(ctx context.Context, id uint32) error {
	ps.usedKyberPreKeys[id] = true
	return nil
}

// BadInMemorySignalProtocolStore returns an error from LoadPreKey, which must
// surface from the native call as the original Go error.
type BadInMemorySignalProtocolStore struct {
	*InMemorySignalProtocolStore
}

func (ps *BadInMemorySignalProtocolStore) LoadPreKey(ctx context.Context, id uint32) (*libsignalgo.PreKeyRecord, error) {
	return nil, errors.New("Test error")
}

// PanickyInMemorySignalProtocolStore panics in LoadSignedPreKey. The
// trampoline has to swallow the panic and fail the native call instead of
// unwinding across the FFI boundary.
type PanickyInMemorySignalProtocolStore struct {
	*InMemorySignalProtocolStore
}

func (ps *PanickyInMemorySignalProtocolStore) LoadSignedPreKey(ctx context.Context, id uint32) (*libsignalgo.SignedPreKeyRecord, error) {
	panic("store crashed")
}
