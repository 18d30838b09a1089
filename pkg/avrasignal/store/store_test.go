package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/dbutil"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

func newTestContainer(t *testing.T) *store.Container {
	t.Helper()
	db, err := dbutil.NewWithDialect(fmt.Sprintf("file:%s/store-test.db?_txlock=immediate", t.TempDir()), "sqlite3")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	container := store.NewStore(db, dbutil.ZeroLogger(zerolog.Nop()))
	require.NoError(t, container.Upgrade(context.TODO()))
	return container
}

func newTestAgent(t *testing.T, container *store.Container) *store.Agent {
	t.Helper()
	data := &store.AgentData{
		ServiceID:      uuid.New(),
		DeviceID:       1,
		RegistrationID: 4096,
	}
	require.NoError(t, container.PutAgent(context.TODO(), data))
	agent, err := container.AgentByServiceID(context.TODO(), data.ServiceID)
	require.NoError(t, err)
	require.NotNil(t, agent)
	return agent
}

func TestContainerAgents(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)

	missing, err := container.AgentByServiceID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = container.PutAgent(ctx, &store.AgentData{})
	assert.ErrorIs(t, err, store.ErrAgentIDMustBeSet)

	agent := newTestAgent(t, container)
	assert.Equal(t, 1, agent.DeviceID)
	assert.Equal(t, 4096, agent.RegistrationID)
	assert.Nil(t, agent.IdentityKeyPair)
	assert.NotNil(t, agent.SessionStore)
	assert.NotNil(t, agent.IdentityKeyStore)
	assert.NotNil(t, agent.PreKeyStore)

	// PutAgent upserts.
	agent.RegistrationID = 9999
	require.NoError(t, container.PutAgent(ctx, &agent.AgentData))
	reloaded, err := container.AgentByServiceID(ctx, agent.ServiceID)
	require.NoError(t, err)
	assert.Equal(t, 9999, reloaded.RegistrationID)

	all, err := container.GetAllAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, container.DeleteAgent(ctx, &agent.AgentData))
	deleted, err := container.AgentByServiceID(ctx, agent.ServiceID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestOwnIdentityKeyPair(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)
	agent := newTestAgent(t, container)

	pair, err := agent.IdentityKeyStore.GetIdentityKeyPair(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	generated, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	serialized, err := generated.Serialize()
	require.NoError(t, err)
	require.NoError(t, agent.IdentityKeyStore.PutOwnIdentityKeyPair(ctx, serialized))

	pair, err = agent.IdentityKeyStore.GetIdentityKeyPair(ctx)
	require.NoError(t, err)
	require.NotNil(t, pair)
	reserialized, err := pair.Serialize()
	require.NoError(t, err)
	assert.Equal(t, serialized, reserialized)

	// The agent row scan picks the pair up too.
	reloaded, err := container.AgentByServiceID(ctx, agent.ServiceID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.IdentityKeyPair)

	registrationID, err := agent.IdentityKeyStore.GetLocalRegistrationID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, registrationID)
}

func TestSessionStorage(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)
	agent := newTestAgent(t, container)
	sessions := agent.SessionStore

	peer := uuid.New()

	record, err := sessions.GetSession(ctx, peer, 1)
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, sessions.PutSession(ctx, peer, 1, []byte("record-1")))
	require.NoError(t, sessions.PutSession(ctx, peer, 2, []byte("record-2")))

	record, err = sessions.GetSession(ctx, peer, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("record-1"), record)

	// Same device replaces.
	require.NoError(t, sessions.PutSession(ctx, peer, 1, []byte("record-1b")))
	record, err = sessions.GetSession(ctx, peer, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("record-1b"), record)

	all, err := sessions.GetAllSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, sessions.DeleteSession(ctx, peer, 1))
	all, err = sessions.GetAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].TheirDeviceID)

	other := uuid.New()
	require.NoError(t, sessions.PutSession(ctx, other, 1, []byte("other")))
	require.NoError(t, sessions.(*store.AgentStore).DeleteSessionsWithPeer(ctx, peer))
	all, err = sessions.GetAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, other, all[0].TheirServiceID)

	require.NoError(t, sessions.DeleteAllSessions(ctx))
	all, err = sessions.GetAllSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIdentityKeyStorage(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)
	agent := newTestAgent(t, container)
	identities := agent.IdentityKeyStore

	peer := uuid.New()
	address, err := libsignalgo.NewAddress(peer.String(), 1)
	require.NoError(t, err)
	defer address.Destroy()

	pair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)

	// Unknown identities are trusted on first use.
	trusted, err := identities.IsTrustedIdentity(ctx, address, pair.GetIdentityKey(), libsignalgo.SignalDirectionReceiving)
	require.NoError(t, err)
	assert.True(t, trusted)

	stored, err := identities.GetIdentityKey(ctx, address)
	require.NoError(t, err)
	assert.Nil(t, stored)

	replacing, err := identities.SaveIdentityKey(ctx, address, pair.GetIdentityKey())
	require.NoError(t, err)
	assert.False(t, replacing)

	rows, err := identities.GetAllIdentityKeys(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, store.TrustLevelUnverified, rows[0].TrustLevel)
	assert.Equal(t, peer, rows[0].TheirServiceID)

	stored, err = identities.GetIdentityKey(ctx, address)
	require.NoError(t, err)
	require.NotNil(t, stored)
	equal, err := stored.Equal(pair.GetIdentityKey())
	require.NoError(t, err)
	assert.True(t, equal)

	// Saving the same key again is not a replacement.
	replacing, err = identities.SaveIdentityKey(ctx, address, pair.GetIdentityKey())
	require.NoError(t, err)
	assert.False(t, replacing)

	require.NoError(t, identities.SetTrustLevel(ctx, peer, 1, store.TrustLevelVerified))
	trusted, err = identities.IsTrustedIdentity(ctx, address, pair.GetIdentityKey(), libsignalgo.SignalDirectionSending)
	require.NoError(t, err)
	assert.True(t, trusted)

	// A different key is a replacement and resets the trust level.
	otherPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	replacing, err = identities.SaveIdentityKey(ctx, address, otherPair.GetIdentityKey())
	require.NoError(t, err)
	assert.True(t, replacing)
	rows, err = identities.GetAllIdentityKeys(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, store.TrustLevelUnverified, rows[0].TrustLevel)
}

func TestPreKeyStorage(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)
	agent := newTestAgent(t, container)
	preKeys := agent.PreKeyStore

	nextID, err := preKeys.GetNextPreKeyID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nextID)

	for id := uint32(1); id <= 3; id++ {
		require.NoError(t, preKeys.PutPreKey(ctx, id, []byte{byte(id)}, false))
	}
	nextID, err = preKeys.GetNextPreKeyID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, nextID)

	count, err := preKeys.GetUploadedPreKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, preKeys.MarkPreKeysAsUploaded(ctx, 2))
	count, err = preKeys.GetUploadedPreKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := preKeys.GetAllPreKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Uploaded)
	assert.True(t, all[1].Uploaded)
	assert.False(t, all[2].Uploaded)

	require.NoError(t, preKeys.DeletePreKey(ctx, 1))
	all, err = preKeys.GetAllPreKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Signed prekeys have their own ID sequence.
	nextID, err = preKeys.GetNextSignedPreKeyID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nextID)
	require.NoError(t, preKeys.PutSignedPreKey(ctx, 1, []byte("signed"), false))
	require.NoError(t, preKeys.MarkSignedPreKeysAsUploaded(ctx, 1))
	signed, err := preKeys.GetAllSignedPreKeys(ctx)
	require.NoError(t, err)
	require.Len(t, signed, 1)
	assert.True(t, signed[0].Uploaded)
	nextID, err = preKeys.GetNextSignedPreKeyID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, nextID)
}

func TestKyberPreKeyStorage(t *testing.T) {
	ctx := context.TODO()
	container := newTestContainer(t)
	agent := newTestAgent(t, container)
	preKeys := agent.PreKeyStore

	require.NoError(t, preKeys.PutKyberPreKey(ctx, 1, []byte("one-shot"), false, false))
	require.NoError(t, preKeys.PutKyberPreKey(ctx, 2, []byte("last-resort"), true, false))
	require.NoError(t, preKeys.MarkKyberPreKeysAsUploaded(ctx, 2))

	nextID, err := preKeys.GetNextKyberPreKeyID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, nextID)

	// The last-resort key doesn't count towards the published supply.
	count, err := preKeys.GetUploadedKyberPreKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting a used key spares the last-resort key.
	require.NoError(t, preKeys.DeleteUsedKyberPreKey(ctx, 2))
	all, err := preKeys.GetAllKyberPreKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, preKeys.DeleteUsedKyberPreKey(ctx, 1))
	all, err = preKeys.GetAllKyberPreKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsLastResort)
	assert.Equal(t, []byte("last-resort"), all[0].KeyPair)
}
