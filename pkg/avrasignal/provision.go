package avrasignal

import (
	"context"
	"fmt"
	mrand "math/rand"

	"github.com/google/uuid"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// DefaultDeviceID is used for agents that only run a single device.
const DefaultDeviceID = 1

// ProvisionAgent creates and persists a fresh agent: new service ID, a
// generated identity key pair and a random registration ID. The returned
// agent is ready to hand to NewClient.
func ProvisionAgent(ctx context.Context, container *store.Container, deviceID int) (*store.Agent, error) {
	if deviceID <= 0 {
		deviceID = DefaultDeviceID
	}
	identityKeyPair, err := libsignalgo.GenerateIdentityKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key pair: %w", err)
	}
	data := &store.AgentData{
		ServiceID:       uuid.New(),
		DeviceID:        deviceID,
		RegistrationID:  mrand.Intn(16383) + 1,
		IdentityKeyPair: identityKeyPair,
	}
	err = container.PutAgent(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store new agent: %w", err)
	}
	return container.AgentByServiceID(ctx, data.ServiceID)
}
