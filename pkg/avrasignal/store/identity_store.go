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

package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mau.fi/util/dbutil"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var _ IdentityKeyStore = (*AgentStore)(nil)

// TrustLevel is how far we trust a peer identity key. New keys start out
// unverified; verified means the agents compared safety numbers out of band.
type TrustLevel string

const (
	TrustLevelUnverified TrustLevel = "TRUSTED_UNVERIFIED"
	TrustLevelVerified   TrustLevel = "TRUSTED_VERIFIED"
)

func (tl TrustLevel) Trusted() bool {
	return tl == TrustLevelUnverified || tl == TrustLevelVerified
}

const (
	getIdentityKeyPairQuery = `SELECT identity_key_pair FROM avrasignal_agent WHERE service_id=$1`
	getRegistrationIDQuery  = `SELECT registration_id FROM avrasignal_agent WHERE service_id=$1`
	putIdentityKeyPairQuery = `UPDATE avrasignal_agent SET identity_key_pair=$2 WHERE service_id=$1`
	getAllIdentityKeysQuery = `SELECT their_service_id, their_device_id, key, trust_level FROM avrasignal_identity_keys WHERE account_id=$1`
	putIdentityKeyQuery     = `
		INSERT INTO avrasignal_identity_keys (account_id, their_service_id, their_device_id, key, trust_level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, their_service_id, their_device_id) DO UPDATE
			SET key=excluded.key, trust_level=excluded.trust_level
	`
	getIdentityKeyQuery = `
		SELECT key, trust_level FROM avrasignal_identity_keys
		WHERE account_id=$1 AND their_service_id=$2 AND their_device_id=$3
	`
	getIdentityKeyTrustLevelQuery = `
		SELECT trust_level FROM avrasignal_identity_keys
		WHERE account_id=$1 AND their_service_id=$2 AND their_device_id=$3
	`
	setIdentityTrustLevelQuery = `
		UPDATE avrasignal_identity_keys SET trust_level=$4
		WHERE account_id=$1 AND their_service_id=$2 AND their_device_id=$3
	`
)

// IdentityKeyRow is one persisted peer identity key.
type IdentityKeyRow struct {
	TheirServiceID uuid.UUID
	TheirDeviceID  int
	Key            []byte
	TrustLevel     TrustLevel
}

type IdentityKeyStore interface {
	libsignalgo.IdentityKeyStore

	// GetAllIdentityKeys returns every known peer identity key of this agent.
	GetAllIdentityKeys(ctx context.Context) ([]*IdentityKeyRow, error)
	// PutIdentityKey stores an already-serialized peer identity key.
	PutIdentityKey(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, key []byte, trustLevel TrustLevel) error
	// PutOwnIdentityKeyPair replaces this agent's serialized identity key pair.
	PutOwnIdentityKeyPair(ctx context.Context, keyPair []byte) error
	// SetTrustLevel updates the trust level of an already-known peer identity.
	SetTrustLevel(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, trustLevel TrustLevel) error
}

func scanIdentityKeyBytes(row dbutil.Scannable) ([]byte, TrustLevel, error) {
	var key []byte
	var trustLevel TrustLevel
	err := row.Scan(&key, &trustLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	} else if err != nil {
		return nil, "", err
	}
	return key, trustLevel, nil
}

func (s *AgentStore) GetIdentityKeyPair(ctx context.Context) (*libsignalgo.IdentityKeyPair, error) {
	var keyPair []byte
	err := s.db.QueryRow(ctx, getIdentityKeyPairQuery, s.AgentID).Scan(&keyPair)
	if errors.Is(err, sql.ErrNoRows) || len(keyPair) == 0 {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return libsignalgo.DeserializeIdentityKeyPair(keyPair)
}

func (s *AgentStore) GetLocalRegistrationID(ctx context.Context) (uint32, error) {
	var regID sql.NullInt64
	err := s.db.QueryRow(ctx, getRegistrationIDQuery, s.AgentID).Scan(&regID)
	if err != nil {
		return 0, fmt.Errorf("failed to get local registration ID: %w", err)
	}
	return uint32(regID.Int64), nil
}

func (s *AgentStore) SaveIdentityKey(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey) (bool, error) {
	serialized, err := identityKey.Serialize()
	if err != nil {
		return false, fmt.Errorf("failed to serialize identity key: %w", err)
	}
	theirServiceID, theirDeviceID, err := parseAddress(address)
	if err != nil {
		return false, err
	}
	oldKey, _, err := scanIdentityKeyBytes(s.db.QueryRow(ctx, getIdentityKeyQuery, s.AgentID, theirServiceID, theirDeviceID))
	if err != nil {
		return false, fmt.Errorf("failed to get old identity key: %w", err)
	}
	// Replacing means a different key already existed. The new key is stored
	// either way, the caller just gets told the peer changed identities.
	replacing := oldKey != nil && !bytes.Equal(oldKey, serialized)
	err = s.PutIdentityKey(ctx, theirServiceID, theirDeviceID, serialized, TrustLevelUnverified)
	if err != nil {
		return replacing, fmt.Errorf("failed to insert new identity key: %w", err)
	}
	return replacing, nil
}

func (s *AgentStore) IsTrustedIdentity(ctx context.Context, address *libsignalgo.Address, identityKey *libsignalgo.IdentityKey, direction libsignalgo.SignalDirection) (bool, error) {
	theirServiceID, theirDeviceID, err := parseAddress(address)
	if err != nil {
		return false, err
	}
	var trustLevel TrustLevel
	err = s.db.QueryRow(ctx, getIdentityKeyTrustLevelQuery, s.AgentID, theirServiceID, theirDeviceID).Scan(&trustLevel)
	if errors.Is(err, sql.ErrNoRows) {
		// First contact with this identity, trust on first use.
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get trust level from database: %w", err)
	}
	return trustLevel.Trusted(), nil
}

func (s *AgentStore) GetIdentityKey(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.IdentityKey, error) {
	theirServiceID, theirDeviceID, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	key, _, err := scanIdentityKeyBytes(s.db.QueryRow(ctx, getIdentityKeyQuery, s.AgentID, theirServiceID, theirDeviceID))
	if err != nil {
		return nil, fmt.Errorf("failed to get identity key from database: %w", err)
	} else if key == nil {
		return nil, nil
	}
	return libsignalgo.DeserializeIdentityKey(key)
}

func (s *AgentStore) GetAllIdentityKeys(ctx context.Context) ([]*IdentityKeyRow, error) {
	rows, err := s.db.Query(ctx, getAllIdentityKeysQuery, s.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity keys: %w", err)
	}
	defer rows.Close()
	var keys []*IdentityKeyRow
	for rows.Next() {
		var row IdentityKeyRow
		err = rows.Scan(&row.TheirServiceID, &row.TheirDeviceID, &row.Key, &row.TrustLevel)
		if err != nil {
			return nil, err
		}
		keys = append(keys, &row)
	}
	return keys, rows.Err()
}

func (s *AgentStore) PutIdentityKey(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, key []byte, trustLevel TrustLevel) error {
	_, err := s.db.Exec(ctx, putIdentityKeyQuery, s.AgentID, theirServiceID, theirDeviceID, key, trustLevel)
	return err
}

func (s *AgentStore) PutOwnIdentityKeyPair(ctx context.Context, keyPair []byte) error {
	_, err := s.db.Exec(ctx, putIdentityKeyPairQuery, s.AgentID, keyPair)
	return err
}

func (s *AgentStore) SetTrustLevel(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, trustLevel TrustLevel) error {
	_, err := s.db.Exec(ctx, setIdentityTrustLevelQuery, s.AgentID, theirServiceID, theirDeviceID, trustLevel)
	return err
}
