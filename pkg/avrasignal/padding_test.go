package avrasignal

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPadding(t *testing.T) {
	cases := []struct {
		messageLength int
		paddedLength  int
	}{
		{0, 160},
		{1, 160},
		{158, 160},
		{159, 160},
		{160, 320},
		{161, 320},
		{319, 320},
		{320, 480},
	}
	for _, tc := range cases {
		message := bytes.Repeat([]byte{0xab}, tc.messageLength)
		padded := addPadding(message)
		assert.Len(t, padded, tc.paddedLength, "message of %d bytes", tc.messageLength)
		assert.Equal(t, message, padded[:tc.messageLength])
		assert.EqualValues(t, paddingTerminator, padded[tc.messageLength])
		for i := tc.messageLength + 1; i < len(padded); i++ {
			assert.EqualValues(t, 0, padded[i], "byte %d after terminator", i)
		}
	}
}

func TestPaddingRoundTrip(t *testing.T) {
	for _, messageLength := range []int{0, 1, 7, 159, 160, 161, 1024} {
		message := make([]byte, messageLength)
		_, err := rand.Read(message)
		require.NoError(t, err)

		padded := addPadding(message)
		err = stripPadding(&padded)
		require.NoError(t, err)
		assert.Equal(t, message, padded)
	}
}

func TestStripPaddingTrailingZeros(t *testing.T) {
	contents := []byte{1, 2, 3, paddingTerminator, 0, 0, 0}
	err := stripPadding(&contents)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, contents)
}

func TestStripPaddingInvalid(t *testing.T) {
	noTerminator := []byte{1, 2, 3}
	assert.EqualError(t, stripPadding(&noTerminator), "Invalid ISO7816 padding")

	allZeros := []byte{0, 0, 0}
	assert.EqualError(t, stripPadding(&allZeros), "Invalid ISO7816 padding, len(contents): 3")

	empty := []byte{}
	assert.EqualError(t, stripPadding(&empty), "Invalid ISO7816 padding, len(contents): 0")
}
