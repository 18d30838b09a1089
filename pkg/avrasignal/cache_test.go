package avrasignal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.TODO()
	directory := newMemoryDirectory()
	aliceContainer := newTestContainer(t)
	bobContainer := newTestContainer(t)
	aliceAgent, err := ProvisionAgent(ctx, aliceContainer, DefaultDeviceID)
	require.NoError(t, err)
	bobAgent, err := ProvisionAgent(ctx, bobContainer, DefaultDeviceID)
	require.NoError(t, err)
	alice := wrapTestAgent(t, aliceAgent, directory)
	bob := wrapTestAgent(t, bobAgent, directory)

	require.NoError(t, bob.RotatePreKeys(ctx))

	encrypted, err := alice.EncryptMessage(ctx, []byte("before restart"), peerOf(bob))
	require.NoError(t, err)
	decrypted, err := bob.DecryptMessage(ctx, encrypted.Ciphertext, peerOf(alice))
	require.NoError(t, err)
	assert.Equal(t, []byte("before restart"), decrypted)

	require.NoError(t, alice.Flush(ctx))
	require.NoError(t, bob.Flush(ctx))
	alice.Close()
	bob.Close()

	aliceAgent2, err := aliceContainer.AgentByServiceID(ctx, aliceAgent.ServiceID)
	require.NoError(t, err)
	bobAgent2, err := bobContainer.AgentByServiceID(ctx, bobAgent.ServiceID)
	require.NoError(t, err)
	alice2 := wrapTestAgent(t, aliceAgent2, directory)
	bob2 := wrapTestAgent(t, bobAgent2, directory)

	// The restarted clients continue over the persisted session: a normal
	// ratchet message, no new prekey consumed.
	remaining := directory.remainingPreKeys(peerOf(bob2))
	encrypted2, err := alice2.EncryptMessage(ctx, []byte("after restart"), peerOf(bob2))
	require.NoError(t, err)
	assert.Equal(t, libsignalgo.CiphertextMessageTypeWhisper, encrypted2.Type)
	assert.Equal(t, remaining, directory.remainingPreKeys(peerOf(bob2)))

	decrypted2, err := bob2.DecryptMessage(ctx, encrypted2.Ciphertext, peerOf(alice2))
	require.NoError(t, err)
	assert.Equal(t, []byte("after restart"), decrypted2)

	reply, err := bob2.EncryptMessage(ctx, []byte("ack"), peerOf(alice2))
	require.NoError(t, err)
	decryptedReply, err := alice2.DecryptMessage(ctx, reply.Ciphertext, peerOf(bob2))
	require.NoError(t, err)
	assert.Equal(t, []byte("ack"), decryptedReply)

	sessions, err := alice2.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PeerDevice{peerOf(bob2)}, sessions)

	// One prekey was consumed by the establishment before the restart.
	count, err := bob2.UploadedPreKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, oneTimePreKeyCount-1, count)
}

func TestWritesContinueInlineAfterClose(t *testing.T) {
	ctx := context.TODO()
	directory := newMemoryDirectory()
	alice := newTestClient(t, directory)
	bob := newTestClient(t, directory)

	require.NoError(t, bob.RotatePreKeys(ctx))
	bob.Close()

	// The closed client keeps working, writes just land synchronously.
	encrypted, err := alice.EncryptMessage(ctx, []byte("late"), peerOf(bob))
	require.NoError(t, err)
	decrypted, err := bob.DecryptMessage(ctx, encrypted.Ciphertext, peerOf(alice))
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), decrypted)

	// Durable without a flush.
	record, err := bob.Store.SessionStore.GetSession(ctx, alice.Store.ServiceID, alice.Store.DeviceID)
	require.NoError(t, err)
	assert.NotEmpty(t, record)

	assert.NoError(t, bob.Flush(ctx))
}

func TestIdentityTrustLevels(t *testing.T) {
	ctx := context.TODO()
	directory := newMemoryDirectory()
	alice := newTestClient(t, directory)
	bob := newTestClient(t, directory)

	require.NoError(t, bob.RotatePreKeys(ctx))

	key, trustLevel, err := alice.LoadRemoteIdentityKeyBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Nil(t, key)
	err = alice.SetIdentityTrustLevel(ctx, peerOf(bob), store.TrustLevelVerified)
	assert.ErrorContains(t, err, "no identity key known")

	// Establishment stores the peer identity as unverified.
	_, err = alice.EncryptMessage(ctx, []byte("hello"), peerOf(bob))
	require.NoError(t, err)
	key, trustLevel, err = alice.LoadRemoteIdentityKeyBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, store.TrustLevelUnverified, trustLevel)

	require.NoError(t, alice.SetIdentityTrustLevel(ctx, peerOf(bob), store.TrustLevelVerified))
	_, trustLevel, err = alice.LoadRemoteIdentityKeyBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Equal(t, store.TrustLevelVerified, trustLevel)

	require.NoError(t, alice.Flush(ctx))
	rows, err := alice.Store.IdentityKeyStore.GetAllIdentityKeys(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].Key)
	assert.Equal(t, store.TrustLevelVerified, rows[0].TrustLevel)

	// A different key for the same peer counts as a replacement and resets
	// the trust level.
	newPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	address, err := peerOf(bob).Address()
	require.NoError(t, err)
	defer address.Destroy()
	replacing, err := alice.protocolStore.SaveIdentityKey(ctx, address, newPair.GetIdentityKey())
	require.NoError(t, err)
	assert.True(t, replacing)
	_, trustLevel, err = alice.LoadRemoteIdentityKeyBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Equal(t, store.TrustLevelUnverified, trustLevel)

	// Re-saving the same key is not a replacement.
	replacing, err = alice.protocolStore.SaveIdentityKey(ctx, address, newPair.GetIdentityKey())
	require.NoError(t, err)
	assert.False(t, replacing)
}

func TestSaveRemoteIdentityKeyBytes(t *testing.T) {
	ctx := context.TODO()
	alice := newTestClient(t, newMemoryDirectory())
	bob := newTestClient(t, newMemoryDirectory())

	bobPair, err := bob.GetOrGenerateIdentityKeyPair(ctx)
	require.NoError(t, err)
	bobKey, err := bobPair.GetPublicKey().Serialize()
	require.NoError(t, err)

	require.NoError(t, alice.SaveRemoteIdentityKeyBytes(ctx, peerOf(bob), bobKey))
	key, trustLevel, err := alice.LoadRemoteIdentityKeyBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Equal(t, bobKey, key)
	assert.Equal(t, store.TrustLevelUnverified, trustLevel)

	// With the identity pinned, the safety number works before any message.
	number, err := alice.SafetyNumber(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.NotEmpty(t, number.Numeric)

	assert.Error(t, alice.SaveRemoteIdentityKeyBytes(ctx, peerOf(bob), []byte{1, 2, 3}))
}

func TestSessionRecordBytes(t *testing.T) {
	ctx := context.TODO()
	directory := newMemoryDirectory()
	alice := newTestClient(t, directory)
	bob := newTestClient(t, directory)

	require.NoError(t, bob.RotatePreKeys(ctx))

	record, err := alice.LoadSessionRecordBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Nil(t, record)

	encrypted, err := alice.EncryptMessage(ctx, []byte("hello"), peerOf(bob))
	require.NoError(t, err)
	_, err = bob.DecryptMessage(ctx, encrypted.Ciphertext, peerOf(alice))
	require.NoError(t, err)

	record, err = alice.LoadSessionRecordBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	require.NotEmpty(t, record)

	require.NoError(t, alice.DeleteSessionRecord(ctx, peerOf(bob)))
	gone, err := alice.LoadSessionRecordBytes(ctx, peerOf(bob))
	require.NoError(t, err)
	assert.Nil(t, gone)
	sessions, err := alice.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// Importing the exported record resumes the ratchet where it left off.
	require.NoError(t, alice.SaveSessionRecordBytes(ctx, peerOf(bob), record))
	resumed, err := alice.EncryptMessage(ctx, []byte("resumed"), peerOf(bob))
	require.NoError(t, err)
	assert.Equal(t, libsignalgo.CiphertextMessageTypeWhisper, resumed.Type)
	decrypted, err := bob.DecryptMessage(ctx, resumed.Ciphertext, peerOf(alice))
	require.NoError(t, err)
	assert.Equal(t, []byte("resumed"), decrypted)

	// Garbage is rejected before it can clobber anything.
	assert.Error(t, alice.SaveSessionRecordBytes(ctx, peerOf(bob), []byte{1, 2, 3}))
}
