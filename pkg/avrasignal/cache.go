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

package avrasignal

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var (
	_ libsignalgo.SessionStore      = (*protocolStore)(nil)
	_ libsignalgo.IdentityKeyStore  = (*protocolStore)(nil)
	_ libsignalgo.PreKeyStore       = (*protocolStore)(nil)
	_ libsignalgo.SignedPreKeyStore = (*protocolStore)(nil)
	_ libsignalgo.KyberPreKeyStore  = (*protocolStore)(nil)
)

type identityEntry struct {
	Key        []byte
	TrustLevel store.TrustLevel
}

type preKeyEntry struct {
	record   []byte
	uploaded bool
}

type kyberPreKeyEntry struct {
	record       []byte
	isLastResort bool
	uploaded     bool
}

type pendingWrite struct {
	name    string
	do      func(ctx context.Context) error
	barrier chan struct{}
}

// protocolStore is the store the engine actually talks to. Engine callbacks
// run synchronously on foreign call stacks and must not block on I/O, so
// everything is served from memory: warm loads the full durable state up
// front, reads never touch the database, and mutations update memory under
// the lock and enqueue a durable write for the background flusher.
//
// A single FIFO flusher keeps writes in the order the mutations happened.
// Enqueued writes survive the triggering call's context; they only stop at
// Close, which drains the queue first.
type protocolStore struct {
	agent *store.Agent

	lock sync.Mutex

	identityKeyPair *libsignalgo.IdentityKeyPair
	registrationID  uint32

	sessions      map[PeerDevice][]byte
	identityKeys  map[PeerDevice]identityEntry
	preKeys       map[uint32]preKeyEntry
	signedPreKeys map[uint32]preKeyEntry
	kyberPreKeys  map[uint32]kyberPreKeyEntry

	nextPreKeyID       uint32
	nextSignedPreKeyID uint32
	nextKyberPreKeyID  uint32

	writes chan pendingWrite
	done   chan struct{}
	closed bool
}

func newProtocolStore(agent *store.Agent) *protocolStore {
	return &protocolStore{
		agent: agent,

		sessions:      make(map[PeerDevice][]byte),
		identityKeys:  make(map[PeerDevice]identityEntry),
		preKeys:       make(map[uint32]preKeyEntry),
		signedPreKeys: make(map[uint32]preKeyEntry),
		kyberPreKeys:  make(map[uint32]kyberPreKeyEntry),

		nextPreKeyID:       1,
		nextSignedPreKeyID: 1,
		nextKyberPreKeyID:  1,

		writes: make(chan pendingWrite, 256),
		done:   make(chan struct{}),
	}
}

func (ps *protocolStore) start(ctx context.Context) error {
	err := ps.warm(ctx)
	if err != nil {
		return err
	}
	go ps.runFlusher()
	return nil
}

// warm loads the agent's entire durable state into memory. It must finish
// before the engine can make its first callback.
func (ps *protocolStore) warm(ctx context.Context) error {
	sessions, err := ps.agent.SessionStore.GetAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	identityKeys, err := ps.agent.IdentityKeyStore.GetAllIdentityKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identity keys: %w", err)
	}
	preKeys, err := ps.agent.PreKeyStore.GetAllPreKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prekeys: %w", err)
	}
	signedPreKeys, err := ps.agent.PreKeyStore.GetAllSignedPreKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load signed prekeys: %w", err)
	}
	kyberPreKeys, err := ps.agent.PreKeyStore.GetAllKyberPreKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load kyber prekeys: %w", err)
	}

	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.identityKeyPair = ps.agent.IdentityKeyPair
	ps.registrationID = uint32(ps.agent.RegistrationID)
	for _, row := range sessions {
		ps.sessions[PeerDevice{ServiceID: row.TheirServiceID, DeviceID: row.TheirDeviceID}] = row.Record
	}
	for _, row := range identityKeys {
		peer := PeerDevice{ServiceID: row.TheirServiceID, DeviceID: row.TheirDeviceID}
		ps.identityKeys[peer] = identityEntry{Key: row.Key, TrustLevel: row.TrustLevel}
	}
	for _, row := range preKeys {
		ps.preKeys[row.KeyID] = preKeyEntry{record: row.KeyPair, uploaded: row.Uploaded}
		if row.KeyID >= ps.nextPreKeyID {
			ps.nextPreKeyID = row.KeyID + 1
		}
	}
	for _, row := range signedPreKeys {
		ps.signedPreKeys[row.KeyID] = preKeyEntry{record: row.KeyPair, uploaded: row.Uploaded}
		if row.KeyID >= ps.nextSignedPreKeyID {
			ps.nextSignedPreKeyID = row.KeyID + 1
		}
	}
	for _, row := range kyberPreKeys {
		ps.kyberPreKeys[row.KeyID] = kyberPreKeyEntry{record: row.KeyPair, isLastResort: row.IsLastResort, uploaded: row.Uploaded}
		if row.KeyID >= ps.nextKyberPreKeyID {
			ps.nextKyberPreKeyID = row.KeyID + 1
		}
	}
	return nil
}

func (ps *protocolStore) runFlusher() {
	defer close(ps.done)
	// Writes must land even if the context that triggered them is long gone.
	ctx := context.Background()
	for write := range ps.writes {
		if write.barrier != nil {
			close(write.barrier)
			continue
		}
		err := write.do(ctx)
		writeQueueDepth.Dec()
		if err != nil {
			writeFailures.Inc()
			zlog.Err(err).Str("write", write.name).Msg("Background store write failed")
		}
	}
}

// enqueue hands a durable write to the flusher. Must be called with ps.lock
// held so queue order matches memory mutation order. After Close the write
// runs inline instead.
func (ps *protocolStore) enqueue(name string, do func(ctx context.Context) error) {
	if ps.closed {
		err := do(context.Background())
		if err != nil {
			writeFailures.Inc()
			zlog.Err(err).Str("write", name).Msg("Inline store write failed")
		}
		return
	}
	writeQueueDepth.Inc()
	ps.writes <- pendingWrite{name: name, do: do}
}

// Flush blocks until every write enqueued before the call has landed.
func (ps *protocolStore) Flush(ctx context.Context) error {
	ps.lock.Lock()
	if ps.closed {
		ps.lock.Unlock()
		return nil
	}
	barrier := make(chan struct{})
	ps.writes <- pendingWrite{barrier: barrier}
	ps.lock.Unlock()
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the write queue and stops the flusher. Further mutations are
// persisted inline.
func (ps *protocolStore) Close() {
	ps.lock.Lock()
	if ps.closed {
		ps.lock.Unlock()
		return
	}
	ps.closed = true
	close(ps.writes)
	ps.lock.Unlock()
	<-ps.done
}

func trackCallback(name string) {
	storeCallbacks.WithLabelValues(name).Inc()
}

func peerDeviceFromAddress(address *libsignalgo.Address) (PeerDevice, error) {
	name, err := address.Name()
	if err != nil {
		return PeerDevice{}, fmt.Errorf("failed to get address name: %w", err)
	}
	serviceID, err := uuid.Parse(name)
	if err != nil {
		return PeerDevice{}, fmt.Errorf("address name is not a service ID: %w", err)
	}
	deviceID, err := address.DeviceID()
	if err != nil {
		return PeerDevice{}, fmt.Errorf("failed to get address device ID: %w", err)
	}
	return PeerDevice{ServiceID: serviceID, DeviceID: int(deviceID)}, nil
}

func (ps *protocolStore) LoadSession(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.SessionRecord, error) {
	trackCallback("load_session")
	peer, err := peerDeviceFromAddress(address)
	if err != nil {
		return nil, err
	}
	ps.lock.Lock()
	record := ps.sessions[peer]
	ps.lock.Unlock()
	if record == nil {
		return nil, nil
	}
	return libsignalgo.DeserializeSessionRecord(record)
}

func (ps *protocolStore) StoreSession(ctx context.Context, address *libsignalgo.Address, record *libsignalgo.SessionRecord) error {
	trackCallback("store_session")
	peer, err := peerDeviceFromAddress(address)
	if err != nil {
		return err
	}
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize session record: %w", err)
	}
	ps.putSessionBytes(peer, serialized)
	return nil
}

func (ps *protocolStore) putSessionBytes(peer PeerDevice, record []byte) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.sessions[peer] = record
	ps.enqueue("store_session", func(ctx context.Context) error {
		return ps.agent.SessionStore.PutSession(ctx, peer.ServiceID, peer.DeviceID, record)
	})
}

func (ps *protocolStore) sessionBytes(peer PeerDevice) []byte {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.sessions[peer]
}

func (ps *protocolStore) hasSession(peer PeerDevice) bool {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.sessions[peer] != nil
}

// knownSessions lists every peer device with a session, in a stable order.
func (ps *protocolStore) knownSessions() []PeerDevice {
	ps.lock.Lock()
	peers := maps.Keys(ps.sessions)
	ps.lock.Unlock()
	slices.SortFunc(peers, func(a, b PeerDevice) int {
		if cmp := bytes.Compare(a.ServiceID[:], b.ServiceID[:]); cmp != 0 {
			return cmp
		}
		return a.DeviceID - b.DeviceID
	})
	return peers
}

func (ps *protocolStore) deleteSession(peer PeerDevice) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	delete(ps.sessions, peer)
	ps.enqueue("delete_session", func(ctx context.Context) error {
		return ps.agent.SessionStore.DeleteSession(ctx, peer.ServiceID, peer.DeviceID)
	})
}

func (ps *protocolStore) GetIdentityKeyPair(ctx context.Context) (*libsignalgo.IdentityKeyPair, error) {
	trackCallback("get_identity_key_pair")
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if ps.identityKeyPair == nil {
		return nil, fmt.Errorf("agent has no identity key pair")
	}
	return ps.identityKeyPair, nil
}

func (ps *protocolStore) GetLocalRegistrationID(ctx context.Context) (uint32, error) {
	trackCallback("get_local_registration_id")
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.registrationID, nil
}

func (ps *protocolStore) identityKeyPairHandle() *libsignalgo.IdentityKeyPair {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.identityKeyPair
}

// setIdentityKeyPair only updates memory: the identity must already be
// durable before anything gets signed with it, so the caller persists it
// synchronously first.
func (ps *protocolStore) setIdentityKeyPair(pair *libsignalgo.IdentityKeyPair) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.identityKeyPair = pair
}

func (ps *protocolStore) SaveIdentityKey(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey) (bool, error) {
	trackCallback("save_identity_key")
	peer, err := peerDeviceFromAddress(address)
	if err != nil {
		return false, err
	}
	serialized, err := identityKey.Serialize()
	if err != nil {
		return false, fmt.Errorf("failed to serialize identity key: %w", err)
	}
	ps.lock.Lock()
	defer ps.lock.Unlock()
	existing, found := ps.identityKeys[peer]
	replacing := found && !bytes.Equal(existing.Key, serialized)
	ps.identityKeys[peer] = identityEntry{Key: serialized, TrustLevel: store.TrustLevelUnverified}
	ps.enqueue("save_identity_key", func(ctx context.Context) error {
		return ps.agent.IdentityKeyStore.PutIdentityKey(ctx, peer.ServiceID, peer.DeviceID, serialized, store.TrustLevelUnverified)
	})
	return replacing, nil
}

func (ps *protocolStore) GetIdentityKey(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.IdentityKey, error) {
	trackCallback("get_identity_key")
	peer, err := peerDeviceFromAddress(address)
	if err != nil {
		return nil, err
	}
	ps.lock.Lock()
	entry, found := ps.identityKeys[peer]
	ps.lock.Unlock()
	if !found {
		return nil, nil
	}
	return libsignalgo.DeserializeIdentityKey(entry.Key)
}

func (ps *protocolStore) IsTrustedIdentity(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey, direction libsignalgo.SignalDirection) (bool, error) {
	trackCallback("is_trusted_identity")
	peer, err := peerDeviceFromAddress(address)
	if err != nil {
		return false, err
	}
	ps.lock.Lock()
	entry, found := ps.identityKeys[peer]
	ps.lock.Unlock()
	if !found {
		// First contact with this identity, trust on first use.
		return true, nil
	}
	return entry.TrustLevel.Trusted(), nil
}

func (ps *protocolStore) remoteIdentityKeyBytes(peer PeerDevice) ([]byte, store.TrustLevel, bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	entry, found := ps.identityKeys[peer]
	return entry.Key, entry.TrustLevel, found
}

func (ps *protocolStore) putRemoteIdentityKeyBytes(peer PeerDevice, key []byte, trustLevel store.TrustLevel) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.identityKeys[peer] = identityEntry{Key: key, TrustLevel: trustLevel}
	ps.enqueue("put_identity_key", func(ctx context.Context) error {
		return ps.agent.IdentityKeyStore.PutIdentityKey(ctx, peer.ServiceID, peer.DeviceID, key, trustLevel)
	})
}

func (ps *protocolStore) LoadPreKey(ctx context.Context, id uint32) (*libsignalgo.PreKeyRecord, error) {
	trackCallback("load_pre_key")
	ps.lock.Lock()
	entry, found := ps.preKeys[id]
	ps.lock.Unlock()
	if !found {
		return nil, nil
	}
	return libsignalgo.DeserializePreKeyRecord(entry.record)
}

func (ps *protocolStore) StorePreKey(ctx context.Context, id uint32, record *libsignalgo.PreKeyRecord) error {
	trackCallback("store_pre_key")
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize prekey: %w", err)
	}
	ps.putPreKeyBytes(id, serialized, false)
	return nil
}

func (ps *protocolStore) putPreKeyBytes(id uint32, record []byte, uploaded bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.preKeys[id] = preKeyEntry{record: record, uploaded: uploaded}
	if id >= ps.nextPreKeyID {
		ps.nextPreKeyID = id + 1
	}
	ps.enqueue("store_pre_key", func(ctx context.Context) error {
		return ps.agent.PreKeyStore.PutPreKey(ctx, id, record, uploaded)
	})
}

func (ps *protocolStore) RemovePreKey(ctx context.Context, id uint32) error {
	trackCallback("remove_pre_key")
	ps.lock.Lock()
	defer ps.lock.Unlock()
	delete(ps.preKeys, id)
	ps.enqueue("remove_pre_key", func(ctx context.Context) error {
		return ps.agent.PreKeyStore.DeletePreKey(ctx, id)
	})
	return nil
}

func (ps *protocolStore) LoadSignedPreKey(ctx context.Context, id uint32) (*libsignalgo.SignedPreKeyRecord, error) {
	trackCallback("load_signed_pre_key")
	ps.lock.Lock()
	entry, found := ps.signedPreKeys[id]
	ps.lock.Unlock()
	if !found {
		return nil, nil
	}
	return libsignalgo.DeserializeSignedPreKeyRecord(entry.record)
}

func (ps *protocolStore) StoreSignedPreKey(ctx context.Context, id uint32, record *libsignalgo.SignedPreKeyRecord) error {
	trackCallback("store_signed_pre_key")
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize signed prekey: %w", err)
	}
	ps.putSignedPreKeyBytes(id, serialized, false)
	return nil
}

func (ps *protocolStore) putSignedPreKeyBytes(id uint32, record []byte, uploaded bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.signedPreKeys[id] = preKeyEntry{record: record, uploaded: uploaded}
	if id >= ps.nextSignedPreKeyID {
		ps.nextSignedPreKeyID = id + 1
	}
	ps.enqueue("store_signed_pre_key", func(ctx context.Context) error {
		return ps.agent.PreKeyStore.PutSignedPreKey(ctx, id, record, uploaded)
	})
}

func (ps *protocolStore) LoadKyberPreKey(ctx context.Context, id uint32) (*libsignalgo.KyberPreKeyRecord, error) {
	trackCallback("load_kyber_pre_key")
	ps.lock.Lock()
	entry, found := ps.kyberPreKeys[id]
	ps.lock.Unlock()
	if !found {
		return nil, nil
	}
	return libsignalgo.DeserializeKyberPreKeyRecord(entry.record)
}

func (ps *protocolStore) StoreKyberPreKey(ctx context.Context, id uint32, record *libsignalgo.KyberPreKeyRecord) error {
	trackCallback("store_kyber_pre_key")
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize kyber prekey: %w", err)
	}
	ps.putKyberPreKeyBytes(id, serialized, false, false)
	return nil
}

func (ps *protocolStore) putKyberPreKeyBytes(id uint32, record []byte, lastResort, uploaded bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.kyberPreKeys[id] = kyberPreKeyEntry{record: record, isLastResort: lastResort, uploaded: uploaded}
	if id >= ps.nextKyberPreKeyID {
		ps.nextKyberPreKeyID = id + 1
	}
	ps.enqueue("store_kyber_pre_key", func(ctx context.Context) error {
		return ps.agent.PreKeyStore.PutKyberPreKey(ctx, id, record, lastResort, uploaded)
	})
}

// MarkKyberPreKeyUsed deletes the one-shot kyber prekey that was just
// consumed. The last-resort key is exempt: it keeps answering for every
// establishment until the next rotation.
func (ps *protocolStore) MarkKyberPreKeyUsed(ctx context.Context, id uint32) error {
	trackCallback("mark_kyber_pre_key_used")
	ps.lock.Lock()
	defer ps.lock.Unlock()
	entry, found := ps.kyberPreKeys[id]
	if !found || entry.isLastResort {
		return nil
	}
	delete(ps.kyberPreKeys, id)
	ps.enqueue("mark_kyber_pre_key_used", func(ctx context.Context) error {
		return ps.agent.PreKeyStore.DeleteUsedKyberPreKey(ctx, id)
	})
	return nil
}

func (ps *protocolStore) nextIDs() (preKeyID, signedPreKeyID, kyberPreKeyID uint32) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.nextPreKeyID, ps.nextSignedPreKeyID, ps.nextKyberPreKeyID
}

// markUploaded flags everything up to the given ids as published and
// enqueues the matching durable updates.
func (ps *protocolStore) markUploaded(preKeyUpTo, signedUpTo, kyberUpTo uint32) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	for id, entry := range ps.preKeys {
		if id <= preKeyUpTo && !entry.uploaded {
			entry.uploaded = true
			ps.preKeys[id] = entry
		}
	}
	for id, entry := range ps.signedPreKeys {
		if id <= signedUpTo && !entry.uploaded {
			entry.uploaded = true
			ps.signedPreKeys[id] = entry
		}
	}
	for id, entry := range ps.kyberPreKeys {
		if id <= kyberUpTo && !entry.uploaded {
			entry.uploaded = true
			ps.kyberPreKeys[id] = entry
		}
	}
	ps.enqueue("mark_pre_keys_uploaded", func(ctx context.Context) error {
		err := ps.agent.PreKeyStore.MarkPreKeysAsUploaded(ctx, preKeyUpTo)
		if err != nil {
			return err
		}
		err = ps.agent.PreKeyStore.MarkSignedPreKeysAsUploaded(ctx, signedUpTo)
		if err != nil {
			return err
		}
		return ps.agent.PreKeyStore.MarkKyberPreKeysAsUploaded(ctx, kyberUpTo)
	})
}

func (ps *protocolStore) uploadedPreKeyCount() (count int) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	for _, entry := range ps.preKeys {
		if entry.uploaded {
			count++
		}
	}
	return count
}
