package libsignalgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// From PublicAPITests.swift:testAddress
func TestAddress(t *testing.T) {
	setupLogging()

	addr, err := libsignalgo.NewAddress("addr1", 5)
	assert.NoError(t, err)

	name, err := addr.Name()
	assert.NoError(t, err)
	assert.Equal(t, "addr1", name)

	deviceID, err := addr.DeviceID()
	assert.NoError(t, err)
	assert.Equal(t, uint(5), deviceID)
}

func TestAddressClone(t *testing.T) {
	setupLogging()

	addr, err := libsignalgo.NewAddress("fc0dfe97-65a1-4137-9a92-2e60bfa65e25", 2)
	assert.NoError(t, err)
	cloned, err := addr.Clone()
	assert.NoError(t, err)
	assert.NoError(t, addr.Destroy())

	name, err := cloned.Name()
	assert.NoError(t, err)
	assert.Equal(t, "fc0dfe97-65a1-4137-9a92-2e60bfa65e25", name)
	deviceID, err := cloned.DeviceID()
	assert.NoError(t, err)
	assert.Equal(t, uint(2), deviceID)
}
