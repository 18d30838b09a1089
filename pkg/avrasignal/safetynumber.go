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

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

const fingerprintIterations = 5200

// SafetyNumber is the displayable binding between two agents' identities.
// Numeric is the digit string operators on both sides can compare out of
// band; Scannable is the QR payload for CompareScannedSafetyNumber.
type SafetyNumber struct {
	Numeric   string
	Scannable []byte
}

// SafetyNumber computes the fingerprint between the local identity and the
// identity key stored for the peer device. Both sides compute the same
// number from the service IDs and identity keys alone. The peer must have
// been contacted at least once, otherwise no key is known.
func (cli *Client) SafetyNumber(ctx context.Context, peer PeerDevice) (*SafetyNumber, error) {
	err := cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	identityKeyPair, err := cli.GetOrGenerateIdentityKeyPair(ctx)
	if err != nil {
		return nil, err
	}
	remoteKeyBytes, _, found := cli.protocolStore.remoteIdentityKeyBytes(peer)
	if !found {
		return nil, fmt.Errorf("no identity key known for %s", peer)
	}
	remoteKey, err := libsignalgo.DeserializePublicKey(remoteKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize peer identity key: %w", err)
	}
	defer remoteKey.Destroy()

	localServiceID := cli.Store.ServiceID
	fingerprint, err := libsignalgo.NewFingerprint(
		fingerprintIterations,
		libsignalgo.FingerprintVersionV2,
		localServiceID[:],
		identityKeyPair.GetPublicKey(),
		peer.ServiceID[:],
		remoteKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint: %w", err)
	}
	defer fingerprint.Destroy()

	numeric, err := fingerprint.DisplayString()
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint display string: %w", err)
	}
	scannable, err := fingerprint.ScannableEncoding()
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint scannable encoding: %w", err)
	}
	return &SafetyNumber{Numeric: numeric, Scannable: scannable}, nil
}

// CompareScannedSafetyNumber checks a QR payload scanned from the peer's
// device against the locally computed fingerprint.
func (cli *Client) CompareScannedSafetyNumber(ctx context.Context, peer PeerDevice, scanned []byte) (bool, error) {
	local, err := cli.SafetyNumber(ctx, peer)
	if err != nil {
		return false, err
	}
	match, err := libsignalgo.CompareFingerprints(local.Scannable, scanned)
	if err != nil {
		return false, translateSignalError(err)
	}
	return match, nil
}
