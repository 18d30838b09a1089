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
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mau.fi/util/dbutil"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var _ SessionStore = (*AgentStore)(nil)

const (
	getSessionQuery = `SELECT their_device_id, record FROM avrasignal_sessions WHERE account_id=$1 AND their_service_id=$2 AND their_device_id=$3`
	putSessionQuery = `
		INSERT INTO avrasignal_sessions (account_id, their_service_id, their_device_id, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, their_service_id, their_device_id) DO UPDATE SET record=excluded.record
	`
	getAllSessionsQuery         = `SELECT their_service_id, their_device_id, record FROM avrasignal_sessions WHERE account_id=$1`
	deleteSessionQuery          = `DELETE FROM avrasignal_sessions WHERE account_id=$1 AND their_service_id=$2 AND their_device_id=$3`
	deleteAllSessionsQuery      = `DELETE FROM avrasignal_sessions WHERE account_id=$1`
	deleteSessionsWithPeerQuery = `DELETE FROM avrasignal_sessions WHERE account_id=$1 AND their_service_id=$2`
)

// SessionRow is one persisted double ratchet session, still serialized.
type SessionRow struct {
	TheirServiceID uuid.UUID
	TheirDeviceID  int
	Record         []byte
}

type SessionStore interface {
	libsignalgo.SessionStore

	// GetAllSessions returns every session of this agent, serialized.
	GetAllSessions(ctx context.Context) ([]*SessionRow, error)
	// PutSession stores an already-serialized session record.
	PutSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, record []byte) error
	// GetSession returns the serialized session for the given peer device, or nil if there is none.
	GetSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int) ([]byte, error)
	// DeleteSession removes the session for the given peer device.
	DeleteSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int) error
	// DeleteAllSessions removes all sessions of this agent.
	DeleteAllSessions(ctx context.Context) error
}

func parseAddress(address *libsignalgo.Address) (uuid.UUID, int, error) {
	name, err := address.Name()
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("failed to get service ID from address: %w", err)
	}
	serviceID, err := uuid.Parse(name)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("failed to parse service ID %q: %w", name, err)
	}
	deviceID, err := address.DeviceID()
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("failed to get device ID from address: %w", err)
	}
	return serviceID, int(deviceID), nil
}

func scanSessionBytes(row dbutil.Scannable) ([]byte, error) {
	var deviceID int
	var record []byte
	err := row.Scan(&deviceID, &record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AgentStore) LoadSession(ctx context.Context, address *libsignalgo.Address) (*libsignalgo.SessionRecord, error) {
	theirServiceID, theirDeviceID, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	record, err := scanSessionBytes(s.db.QueryRow(ctx, getSessionQuery, s.AgentID, theirServiceID, theirDeviceID))
	if err != nil || record == nil {
		return nil, err
	}
	return libsignalgo.DeserializeSessionRecord(record)
}

func (s *AgentStore) StoreSession(ctx context.Context, address *libsignalgo.Address, record *libsignalgo.SessionRecord) error {
	theirServiceID, theirDeviceID, err := parseAddress(address)
	if err != nil {
		return err
	}
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize session record: %w", err)
	}
	return s.PutSession(ctx, theirServiceID, theirDeviceID, serialized)
}

func (s *AgentStore) GetAllSessions(ctx context.Context) ([]*SessionRow, error) {
	rows, err := s.db.Query(ctx, getAllSessionsQuery, s.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	var sessions []*SessionRow
	for rows.Next() {
		var row SessionRow
		err = rows.Scan(&row.TheirServiceID, &row.TheirDeviceID, &row.Record)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, &row)
	}
	return sessions, rows.Err()
}

func (s *AgentStore) PutSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int, record []byte) error {
	_, err := s.db.Exec(ctx, putSessionQuery, s.AgentID, theirServiceID, theirDeviceID, record)
	return err
}

func (s *AgentStore) GetSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int) ([]byte, error) {
	return scanSessionBytes(s.db.QueryRow(ctx, getSessionQuery, s.AgentID, theirServiceID, theirDeviceID))
}

func (s *AgentStore) DeleteSession(ctx context.Context, theirServiceID uuid.UUID, theirDeviceID int) error {
	_, err := s.db.Exec(ctx, deleteSessionQuery, s.AgentID, theirServiceID, theirDeviceID)
	return err
}

func (s *AgentStore) DeleteAllSessions(ctx context.Context) error {
	_, err := s.db.Exec(ctx, deleteAllSessionsQuery, s.AgentID)
	return err
}

// DeleteSessionsWithPeer removes the sessions with every device of the given
// peer, forcing fresh establishment on the next message.
func (s *AgentStore) DeleteSessionsWithPeer(ctx context.Context, theirServiceID uuid.UUID) error {
	_, err := s.db.Exec(ctx, deleteSessionsWithPeerQuery, s.AgentID, theirServiceID)
	return err
}
