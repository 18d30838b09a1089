package libsignalgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

func TestIdentityKeyEqual(t *testing.T) {
	setupLogging()

	primary, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	secondary, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)

	equal, err := primary.GetIdentityKey().Equal(primary.GetIdentityKey())
	assert.NoError(t, err)
	assert.True(t, equal)

	equal, err = primary.GetIdentityKey().Equal(secondary.GetIdentityKey())
	assert.NoError(t, err)
	assert.False(t, equal)
}

func TestIdentityKeyPairRoundtrip(t *testing.T) {
	setupLogging()

	pair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	serialized, err := pair.Serialize()
	require.NoError(t, err)

	restored, err := libsignalgo.DeserializeIdentityKeyPair(serialized)
	require.NoError(t, err)

	equal, err := pair.GetIdentityKey().Equal(restored.GetIdentityKey())
	assert.NoError(t, err)
	assert.True(t, equal)
}

func TestIdentityKeyVerifySignature(t *testing.T) {
	setupLogging()

	pair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)

	message := []byte("all the agents that are fit to key")
	signature, err := pair.GetPrivateKey().Sign(message)
	require.NoError(t, err)

	valid, err := pair.GetIdentityKey().VerifySignature(message, signature)
	assert.NoError(t, err)
	assert.True(t, valid)

	valid, err = pair.GetIdentityKey().VerifySignature([]byte("tampered"), signature)
	assert.NoError(t, err)
	assert.False(t, valid)
}
