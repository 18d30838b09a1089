package libsignalgo_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

const (
	testPreKeyID       uint32 = 4570
	testSignedPreKeyID uint32 = 3006
	testKyberPreKeyID  uint32 = 8000
)

// initializeSessions publishes Bob's key material as a bundle, has Alice
// process it and stores the matching private records on Bob's side.
func initializeSessions(t *testing.T, aliceStore, bobStore *InMemorySignalProtocolStore, bobAddress *libsignalgo.Address) {
	ctx := context.TODO()

	bobPreKey, err := libsignalgo.GeneratePrivateKey()
	assert.NoError(t, err)
	bobPreKeyPublicKey, err := bobPreKey.GetPublicKey()
	assert.NoError(t, err)

	bobSignedPreKey, err := libsignalgo.GeneratePrivateKey()
	assert.NoError(t, err)

	bobSignedPreKeyPublic, err := bobSignedPreKey.GetPublicKey()
	assert.NoError(t, err)
	bobSignedPreKeyPublicSerialized, err := bobSignedPreKeyPublic.Serialize()
	assert.NoError(t, err)

	bobIdentityKey, err := bobStore.GetIdentityKeyPair(ctx)
	assert.NoError(t, err)
	bobSignedPreKeySignature, err := bobIdentityKey.GetPrivateKey().Sign(bobSignedPreKeyPublicSerialized)
	assert.NoError(t, err)

	bobKyberKeyPair, err := libsignalgo.KyberKeyPairGenerate()
	assert.NoError(t, err)
	bobKyberPublicKey, err := bobKyberKeyPair.GetPublicKey()
	assert.NoError(t, err)
	bobKyberPublicSerialized, err := bobKyberPublicKey.Serialize()
	assert.NoError(t, err)
	bobKyberSignature, err := bobIdentityKey.GetPrivateKey().Sign(bobKyberPublicSerialized)
	assert.NoError(t, err)

	preKeyID := testPreKeyID
	bobRegistrationID, err := bobStore.GetLocalRegistrationID(ctx)
	assert.NoError(t, err)
	bobBundle, err := libsignalgo.NewPreKeyBundle(
		bobRegistrationID,
		9,
		&preKeyID,
		bobPreKeyPublicKey,
		testSignedPreKeyID,
		bobSignedPreKeyPublic,
		bobSignedPreKeySignature,
		testKyberPreKeyID,
		bobKyberPublicKey,
		bobKyberSignature,
		bobIdentityKey.GetIdentityKey(),
	)
	assert.NoError(t, err)

	// Alice processes the bundle
	err = libsignalgo.ProcessPreKeyBundle(ctx, bobBundle, bobAddress, aliceStore, aliceStore)
	assert.NoError(t, err)

	record, err := aliceStore.LoadSession(ctx, bobAddress)
	assert.NoError(t, err)
	require.NotNil(t, record)

	hasCurrentState, err := record.HasCurrentState()
	assert.NoError(t, err)
	assert.True(t, hasCurrentState)

	remoteRegistrationID, err := record.GetRemoteRegistrationID()
	assert.NoError(t, err)
	assert.Equal(t, bobRegistrationID, remoteRegistrationID)

	// Bob stores the private halves of the bundle
	preKeyRecord, err := libsignalgo.NewPreKeyRecordFromPrivateKey(testPreKeyID, bobPreKey)
	assert.NoError(t, err)
	err = bobStore.StorePreKey(ctx, testPreKeyID, preKeyRecord)
	assert.NoError(t, err)

	signedPreKeyRecord, err := libsignalgo.NewSignedPreKeyRecordFromPrivateKey(testSignedPreKeyID, time.UnixMilli(42000), bobSignedPreKey, bobSignedPreKeySignature)
	assert.NoError(t, err)
	err = bobStore.StoreSignedPreKey(ctx, testSignedPreKeyID, signedPreKeyRecord)
	assert.NoError(t, err)

	kyberPreKeyRecord, err := libsignalgo.NewKyberPreKeyRecord(testKyberPreKeyID, time.UnixMilli(42000), bobKyberKeyPair, bobKyberSignature)
	assert.NoError(t, err)
	err = bobStore.StoreKyberPreKey(ctx, testKyberPreKeyID, kyberPreKeyRecord)
	assert.NoError(t, err)
}

// From SessionTests.swift:testSessionCipher
func TestSessionCipher(t *testing.T) {
	setupLogging()
	ctx := context.TODO()
	aliceAddress, err := libsignalgo.NewAddress("9dbec69c-9a09-4a93-b80a-b89b294d3da4", 1)
	assert.NoError(t, err)
	bobAddress, err := libsignalgo.NewAddress("796abedb-ca4e-4f18-8803-1fde5b921f9f", 9)
	assert.NoError(t, err)

	aliceStore := NewInMemorySignalProtocolStore()
	bobStore := NewInMemorySignalProtocolStore()

	initializeSessions(t, aliceStore, bobStore, bobAddress)

	alicePlaintext := []byte{8, 6, 7, 5, 3, 0, 9}

	aliceCiphertext, err := libsignalgo.Encrypt(ctx, alicePlaintext, bobAddress, aliceStore, aliceStore)
	assert.NoError(t, err)
	aliceCiphertextMessageType, err := aliceCiphertext.MessageType()
	assert.NoError(t, err)
	assert.Equal(t, libsignalgo.CiphertextMessageTypePreKey, aliceCiphertextMessageType)

	aliceCiphertextSerialized, err := aliceCiphertext.Serialize()
	assert.NoError(t, err)
	bobCiphertext, err := libsignalgo.DeserializePreKeyMessage(aliceCiphertextSerialized)
	assert.NoError(t, err)
	bobPlaintext, err := libsignalgo.DecryptPreKey(ctx, bobCiphertext, aliceAddress, bobStore, bobStore, bobStore, bobStore, bobStore)
	assert.NoError(t, err)
	assert.Equal(t, alicePlaintext, bobPlaintext)

	// The one-time pre key is consumed and the kyber pre key marked used
	assert.NotContains(t, bobStore.preKeyMap, testPreKeyID)
	assert.True(t, bobStore.usedKyberPreKeys[testKyberPreKeyID])

	bobPlaintext2 := []byte{23}

	bobCiphertext2, err := libsignalgo.Encrypt(ctx, bobPlaintext2, aliceAddress, bobStore, bobStore)
	assert.NoError(t, err)
	bobCiphertext2MessageType, err := bobCiphertext2.MessageType()
	assert.NoError(t, err)
	assert.Equal(t, libsignalgo.CiphertextMessageTypeWhisper, bobCiphertext2MessageType)

	bobCiphertext2Serialized, err := bobCiphertext2.Serialize()
	assert.NoError(t, err)
	aliceCiphertext2, err := libsignalgo.DeserializeMessage(bobCiphertext2Serialized)
	assert.NoError(t, err)
	alicePlaintext2, err := libsignalgo.Decrypt(ctx, aliceCiphertext2, bobAddress, aliceStore, aliceStore)
	assert.NoError(t, err)
	assert.Equal(t, bobPlaintext2, alicePlaintext2)
}

// From SessionTests.swift:testSessionCipherWithBadStore
func TestSessionCipherWithBadStore(t *testing.T) {
	setupLogging()
	ctx := context.TODO()
	aliceAddress, err := libsignalgo.NewAddress("9dbec69c-9a09-4a93-b80a-b89b294d3da4", 1)
	assert.NoError(t, err)
	bobAddress, err := libsignalgo.NewAddress("796abedb-ca4e-4f18-8803-1fde5b921f9f", 9)
	assert.NoError(t, err)

	aliceStore := NewInMemorySignalProtocolStore()
	bobStore := &BadInMemorySignalProtocolStore{NewInMemorySignalProtocolStore()}

	initializeSessions(t, aliceStore, bobStore.InMemorySignalProtocolStore, bobAddress)

	alicePlaintext := []byte{8, 6, 7, 5, 3, 0, 9}

	aliceCiphertext, err := libsignalgo.Encrypt(ctx, alicePlaintext, bobAddress, aliceStore, aliceStore)
	assert.NoError(t, err)

	aliceCiphertextSerialized, err := aliceCiphertext.Serialize()
	assert.NoError(t, err)
	bobCiphertext, err := libsignalgo.DeserializePreKeyMessage(aliceCiphertextSerialized)
	assert.NoError(t, err)
	_, err = libsignalgo.DecryptPreKey(ctx, bobCiphertext, aliceAddress, bobStore, bobStore, bobStore, bobStore, bobStore)
	require.Error(t, err)
	assert.Equal(t, "Test error", err.Error())
}

// A panic inside a store callback may not unwind through the native frames.
// The call has to come back as a regular callback error.
func TestSessionCipherWithPanickyStore(t *testing.T) {
	setupLogging()
	ctx := context.TODO()
	aliceAddress, err := libsignalgo.NewAddress("9dbec69c-9a09-4a93-b80a-b89b294d3da4", 1)
	assert.NoError(t, err)
	bobAddress, err := libsignalgo.NewAddress("796abedb-ca4e-4f18-8803-1fde5b921f9f", 9)
	assert.NoError(t, err)

	aliceStore := NewInMemorySignalProtocolStore()
	bobStore := &PanickyInMemorySignalProtocolStore{NewInMemorySignalProtocolStore()}

	initializeSessions(t, aliceStore, bobStore.InMemorySignalProtocolStore, bobAddress)

	alicePlaintext := []byte{8, 6, 7, 5, 3, 0, 9}

	aliceCiphertext, err := libsignalgo.Encrypt(ctx, alicePlaintext, bobAddress, aliceStore, aliceStore)
	assert.NoError(t, err)

	aliceCiphertextSerialized, err := aliceCiphertext.Serialize()
	assert.NoError(t, err)
	bobCiphertext, err := libsignalgo.DeserializePreKeyMessage(aliceCiphertextSerialized)
	assert.NoError(t, err)
	_, err = libsignalgo.DecryptPreKey(ctx, bobCiphertext, aliceAddress, bobStore, bobStore, bobStore, bobStore, bobStore)
	require.Error(t, err)
	var signalErr *libsignalgo.SignalError
	require.ErrorAs(t, err, &signalErr)
	assert.Equal(t, libsignalgo.ErrorCodeCallbackError, signalErr.Code)
}

func TestDeserializeGarbage(t *testing.T) {
	setupLogging()
	garbage := make([]byte, 32)
	_, err := rand.Read(garbage)
	require.NoError(t, err)

	_, err = libsignalgo.DeserializeMessage(garbage)
	assert.Error(t, err)
	_, err = libsignalgo.DeserializePreKeyMessage(garbage)
	assert.Error(t, err)
}
