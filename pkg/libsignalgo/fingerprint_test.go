package libsignalgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// From PublicAPITests.swift:testFingerprint
func TestFingerprint(t *testing.T) {
	setupLogging()

	aliceIdentifier := []byte("+14152222222")
	bobIdentifier := []byte("+14153333333")

	aliceKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	bobKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)

	aliceFingerprint, err := libsignalgo.NewFingerprint(
		5200, libsignalgo.FingerprintVersionV2,
		aliceIdentifier, aliceKeyPair.GetPublicKey(),
		bobIdentifier, bobKeyPair.GetPublicKey(),
	)
	require.NoError(t, err)
	bobFingerprint, err := libsignalgo.NewFingerprint(
		5200, libsignalgo.FingerprintVersionV2,
		bobIdentifier, bobKeyPair.GetPublicKey(),
		aliceIdentifier, aliceKeyPair.GetPublicKey(),
	)
	require.NoError(t, err)

	aliceDisplay, err := aliceFingerprint.DisplayString()
	require.NoError(t, err)
	bobDisplay, err := bobFingerprint.DisplayString()
	require.NoError(t, err)
	assert.Equal(t, aliceDisplay, bobDisplay)
	assert.Len(t, aliceDisplay, 60)

	aliceScannable, err := aliceFingerprint.ScannableEncoding()
	require.NoError(t, err)
	bobScannable, err := bobFingerprint.ScannableEncoding()
	require.NoError(t, err)

	matches, err := libsignalgo.CompareFingerprints(aliceScannable, bobScannable)
	assert.NoError(t, err)
	assert.True(t, matches)
}

func TestFingerprintMismatch(t *testing.T) {
	setupLogging()

	aliceIdentifier := []byte("+14152222222")
	bobIdentifier := []byte("+14153333333")

	aliceKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	bobKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)
	malloryKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	require.NoError(t, err)

	aliceFingerprint, err := libsignalgo.NewFingerprint(
		5200, libsignalgo.FingerprintVersionV2,
		aliceIdentifier, aliceKeyPair.GetPublicKey(),
		bobIdentifier, bobKeyPair.GetPublicKey(),
	)
	require.NoError(t, err)
	malloryFingerprint, err := libsignalgo.NewFingerprint(
		5200, libsignalgo.FingerprintVersionV2,
		bobIdentifier, malloryKeyPair.GetPublicKey(),
		aliceIdentifier, aliceKeyPair.GetPublicKey(),
	)
	require.NoError(t, err)

	aliceScannable, err := aliceFingerprint.ScannableEncoding()
	require.NoError(t, err)
	malloryScannable, err := malloryFingerprint.ScannableEncoding()
	require.NoError(t, err)

	matches, err := libsignalgo.CompareFingerprints(aliceScannable, malloryScannable)
	assert.NoError(t, err)
	assert.False(t, matches)
}
