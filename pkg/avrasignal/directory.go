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
	"errors"

	"github.com/google/uuid"
)

// ErrBundleNotFound is returned by Directory.Fetch when the peer device has
// never published keys.
var ErrBundleNotFound = errors.New("no key bundle published for peer device")

// Directory is the key distribution collaborator: agents publish their
// public prekeys through it and fetch other agents' bundles from it to
// establish sessions. Implementations hand out each one-time prekey at most
// once.
type Directory interface {
	Publish(ctx context.Context, upload *PreKeyUpload) error
	Fetch(ctx context.Context, serviceID uuid.UUID, deviceID int) (*PreKeyBundle, error)
}

// PreKeyDetail is one public prekey as it appears on the wire.
type PreKeyDetail struct {
	KeyID     uint32 `json:"keyId"`
	PublicKey []byte `json:"publicKey"`
	Signature []byte `json:"signature,omitempty"` // only present for signed and kyber prekeys
}

// PreKeyUpload is everything RotatePreKeys publishes for one device: the
// full batch of one-time prekeys for the directory to pop from, plus the
// current signed and kyber prekeys.
type PreKeyUpload struct {
	ServiceID             uuid.UUID      `json:"serviceId"`
	DeviceID              int            `json:"deviceId"`
	RegistrationID        int            `json:"registrationId"`
	IdentityKey           []byte         `json:"identityKey"`
	PreKeys               []PreKeyDetail `json:"preKeys"`
	SignedPreKey          PreKeyDetail   `json:"signedPreKey"`
	KyberPreKeys          []PreKeyDetail `json:"pqPreKeys"`
	LastResortKyberPreKey *PreKeyDetail  `json:"pqLastResortPreKey,omitempty"`
}

// PreKeyBundle is the snapshot Fetch returns for one peer device: enough
// public key material to run PQXDH against it. PreKey is nil once the peer's
// one-time prekeys are exhausted. KyberPreKey falls back to the peer's
// last-resort key rather than going absent, but a peer that published
// through an old client may genuinely lack it.
type PreKeyBundle struct {
	ServiceID      uuid.UUID     `json:"serviceId"`
	DeviceID       int           `json:"deviceId"`
	RegistrationID int           `json:"registrationId"`
	IdentityKey    []byte        `json:"identityKey"`
	PreKey         *PreKeyDetail `json:"preKey"`
	SignedPreKey   PreKeyDetail  `json:"signedPreKey"`
	KyberPreKey    *PreKeyDetail `json:"pqPreKey"`
}
