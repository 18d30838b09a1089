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
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/util/exsync"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// Client is one local agent's endpoint: it owns the agent's key material,
// sessions with peer devices, and the engine store the native library calls
// back into. Encrypt and decrypt go through here.
type Client struct {
	Store     *store.Agent
	Directory Directory

	protocolStore *protocolStore

	recentlyDecrypted *exsync.RingBuffer[[32]byte, time.Time]

	identityLock sync.Mutex
	rotateLock   sync.Mutex

	deviceLocks     map[PeerDevice]*sync.Mutex
	deviceLocksLock sync.Mutex

	prepareLock sync.Mutex
	prepared    bool
}

// InMemoryDedupCacheSize specifies how many recently decrypted ciphertext hashes are
// kept to short-circuit byte-identical redeliveries without spinning the ratchet.
var InMemoryDedupCacheSize = 1024

func NewClient(agent *store.Agent, directory Directory) *Client {
	return &Client{
		Store:             agent,
		Directory:         directory,
		protocolStore:     newProtocolStore(agent),
		recentlyDecrypted: exsync.NewRingBuffer[[32]byte, time.Time](InMemoryDedupCacheSize),
		deviceLocks:       make(map[PeerDevice]*sync.Mutex),
	}
}

// Prepare warms the protocol store from the database and starts the
// background flusher. Engine callbacks are served from memory only, so this
// must complete before the first cryptographic operation; every operation
// calls it lazily.
func (cli *Client) Prepare(ctx context.Context) error {
	cli.prepareLock.Lock()
	defer cli.prepareLock.Unlock()
	if cli.prepared {
		return nil
	}
	err := cli.protocolStore.start(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm protocol store: %w", err)
	}
	cli.prepared = true
	return nil
}

// Flush blocks until every durable write enqueued so far has landed.
func (cli *Client) Flush(ctx context.Context) error {
	return cli.protocolStore.Flush(ctx)
}

// Close drains the pending durable writes and stops the background flusher.
// The client stays usable afterwards, writes just land inline.
func (cli *Client) Close() {
	cli.prepareLock.Lock()
	defer cli.prepareLock.Unlock()
	if !cli.prepared {
		return
	}
	cli.protocolStore.Close()
}

// GetOrGenerateIdentityKeyPair returns the agent's long-term identity,
// generating and persisting one on first call. Concurrent callers always
// observe the same identity.
func (cli *Client) GetOrGenerateIdentityKeyPair(ctx context.Context) (*libsignalgo.IdentityKeyPair, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	cli.identityLock.Lock()
	defer cli.identityLock.Unlock()
	if pair := cli.protocolStore.identityKeyPairHandle(); pair != nil {
		return pair, nil
	}
	pair, err := libsignalgo.GenerateIdentityKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key pair: %w", err)
	}
	serialized, err := pair.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize identity key pair: %w", err)
	}
	// The identity must be durable before anything signed with it leaves
	// the agent, so this write doesn't go through the flusher.
	err = cli.Store.IdentityKeyStore.PutOwnIdentityKeyPair(ctx, serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to store identity key pair: %w", err)
	}
	cli.Store.IdentityKeyPair = pair
	cli.protocolStore.setIdentityKeyPair(pair)
	return pair, nil
}

// lockDevice serializes cryptographic operations per peer device. Ratchet
// state mutates on every encrypt and decrypt, so at most one operation may
// be in flight per (service ID, device ID) pair.
func (cli *Client) lockDevice(peer PeerDevice) func() {
	cli.deviceLocksLock.Lock()
	lock, ok := cli.deviceLocks[peer]
	if !ok {
		lock = &sync.Mutex{}
		cli.deviceLocks[peer] = lock
	}
	cli.deviceLocksLock.Unlock()
	lock.Lock()
	return lock.Unlock
}

// LoadSessionRecordBytes returns the serialized session with the peer
// device, or nil if there is none.
func (cli *Client) LoadSessionRecordBytes(ctx context.Context, peer PeerDevice) ([]byte, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return cli.protocolStore.sessionBytes(peer), nil
}

// SaveSessionRecordBytes overwrites the session with the peer device. The
// bytes must parse as an engine session record.
func (cli *Client) SaveSessionRecordBytes(ctx context.Context, peer PeerDevice, record []byte) error {
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	parsed, err := libsignalgo.DeserializeSessionRecord(record)
	if err != nil {
		return fmt.Errorf("bytes do not parse as a session record: %w", err)
	}
	parsed.Destroy()
	cli.protocolStore.putSessionBytes(peer, record)
	return nil
}

// DeleteSessionRecord drops the session with the peer device, forcing fresh
// establishment on the next outgoing message.
func (cli *Client) DeleteSessionRecord(ctx context.Context, peer PeerDevice) error {
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	cli.protocolStore.deleteSession(peer)
	return nil
}

// LoadRemoteIdentityKeyBytes returns the serialized identity key learned
// from the peer device and its trust level, or nil if the peer is unknown.
func (cli *Client) LoadRemoteIdentityKeyBytes(ctx context.Context, peer PeerDevice) ([]byte, store.TrustLevel, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, "", err
	}
	key, trustLevel, found := cli.protocolStore.remoteIdentityKeyBytes(peer)
	if !found {
		return nil, "", nil
	}
	return key, trustLevel, nil
}

// SaveRemoteIdentityKeyBytes records the peer device's identity key as if it
// had just been learned: trust resets to unverified. The bytes must parse as
// an identity key.
func (cli *Client) SaveRemoteIdentityKeyBytes(ctx context.Context, peer PeerDevice, key []byte) error {
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	_, err = libsignalgo.DeserializeIdentityKey(key)
	if err != nil {
		return fmt.Errorf("bytes do not parse as an identity key: %w", err)
	}
	cli.protocolStore.putRemoteIdentityKeyBytes(peer, key, store.TrustLevelUnverified)
	return nil
}

// SetIdentityTrustLevel changes the trust level of an already known peer
// identity, normally after the operator compared safety numbers.
func (cli *Client) SetIdentityTrustLevel(ctx context.Context, peer PeerDevice, trustLevel store.TrustLevel) error {
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	key, _, found := cli.protocolStore.remoteIdentityKeyBytes(peer)
	if !found {
		return fmt.Errorf("no identity key known for %s", peer)
	}
	cli.protocolStore.putRemoteIdentityKeyBytes(peer, key, trustLevel)
	return nil
}

// ListSessions returns every peer device the agent has a session with.
func (cli *Client) ListSessions(ctx context.Context) ([]PeerDevice, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return cli.protocolStore.knownSessions(), nil
}

// UploadedPreKeyCount reports how many one-time prekeys are both stored and
// published, which is what the directory can still hand out.
func (cli *Client) UploadedPreKeyCount(ctx context.Context) (int, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return 0, err
	}
	return cli.protocolStore.uploadedPreKeyCount(), nil
}
