package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mau.fi/util/dbutil"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var _ PreKeyStore = (*AgentStore)(nil)

// PreKeyStore persists the three kinds of prekeys an agent publishes:
// one-time elliptic curve prekeys, the medium-term signed prekey and the
// post-quantum kyber prekeys.
type PreKeyStore interface {
	libsignalgo.PreKeyStore
	libsignalgo.SignedPreKeyStore
	libsignalgo.KyberPreKeyStore

	GetAllPreKeys(ctx context.Context) ([]*PreKeyRow, error)
	GetAllSignedPreKeys(ctx context.Context) ([]*PreKeyRow, error)
	GetAllKyberPreKeys(ctx context.Context) ([]*KyberPreKeyRow, error)

	PutPreKey(ctx context.Context, keyID uint32, keyPair []byte, uploaded bool) error
	PutSignedPreKey(ctx context.Context, keyID uint32, keyPair []byte, uploaded bool) error
	PutKyberPreKey(ctx context.Context, keyID uint32, keyPair []byte, lastResort, uploaded bool) error
	DeletePreKey(ctx context.Context, keyID uint32) error
	// DeleteUsedKyberPreKey removes a consumed kyber prekey unless it is the
	// last-resort key, which stays available indefinitely.
	DeleteUsedKyberPreKey(ctx context.Context, keyID uint32) error

	GetNextPreKeyID(ctx context.Context) (uint32, error)
	GetNextSignedPreKeyID(ctx context.Context) (uint32, error)
	GetNextKyberPreKeyID(ctx context.Context) (uint32, error)
	MarkPreKeysAsUploaded(ctx context.Context, upToID uint32) error
	MarkSignedPreKeysAsUploaded(ctx context.Context, upToID uint32) error
	MarkKyberPreKeysAsUploaded(ctx context.Context, upToID uint32) error
	GetUploadedPreKeyCount(ctx context.Context) (int, error)
	GetUploadedKyberPreKeyCount(ctx context.Context) (int, error)
}

const (
	getPreKeyQuery     = `SELECT key_id, key_pair FROM avrasignal_pre_keys WHERE account_id=$1 AND key_id=$2`
	getAllPreKeysQuery = `SELECT key_id, key_pair, uploaded FROM avrasignal_pre_keys WHERE account_id=$1 ORDER BY key_id`
	putPreKeyQuery     = `
		INSERT INTO avrasignal_pre_keys (account_id, key_id, key_pair, uploaded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, key_id) DO UPDATE SET key_pair=excluded.key_pair, uploaded=excluded.uploaded
	`
	deletePreKeyQuery           = `DELETE FROM avrasignal_pre_keys WHERE account_id=$1 AND key_id=$2`
	getLastPreKeyIDQuery        = `SELECT MAX(key_id) FROM avrasignal_pre_keys WHERE account_id=$1`
	markPreKeysAsUploadedQuery  = `UPDATE avrasignal_pre_keys SET uploaded=true WHERE account_id=$1 AND key_id<=$2`
	getUploadedPreKeyCountQuery = `SELECT COUNT(*) FROM avrasignal_pre_keys WHERE account_id=$1 AND uploaded=true`

	getSignedPreKeyQuery     = `SELECT key_id, key_pair FROM avrasignal_signed_pre_keys WHERE account_id=$1 AND key_id=$2`
	getAllSignedPreKeysQuery = `SELECT key_id, key_pair, uploaded FROM avrasignal_signed_pre_keys WHERE account_id=$1 ORDER BY key_id`
	putSignedPreKeyQuery     = `
		INSERT INTO avrasignal_signed_pre_keys (account_id, key_id, key_pair, uploaded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, key_id) DO UPDATE SET key_pair=excluded.key_pair, uploaded=excluded.uploaded
	`
	getLastSignedPreKeyIDQuery       = `SELECT MAX(key_id) FROM avrasignal_signed_pre_keys WHERE account_id=$1`
	markSignedPreKeysAsUploadedQuery = `UPDATE avrasignal_signed_pre_keys SET uploaded=true WHERE account_id=$1 AND key_id<=$2`

	getKyberPreKeyQuery     = `SELECT key_id, key_pair FROM avrasignal_kyber_pre_keys WHERE account_id=$1 AND key_id=$2`
	getAllKyberPreKeysQuery = `SELECT key_id, key_pair, is_last_resort, uploaded FROM avrasignal_kyber_pre_keys WHERE account_id=$1 ORDER BY key_id`
	putKyberPreKeyQuery     = `
		INSERT INTO avrasignal_kyber_pre_keys (account_id, key_id, key_pair, is_last_resort, uploaded)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, key_id) DO UPDATE
			SET key_pair=excluded.key_pair, is_last_resort=excluded.is_last_resort, uploaded=excluded.uploaded
	`
	deleteUsedKyberPreKeyQuery       = `DELETE FROM avrasignal_kyber_pre_keys WHERE account_id=$1 AND key_id=$2 AND is_last_resort=false`
	getLastKyberPreKeyIDQuery        = `SELECT MAX(key_id) FROM avrasignal_kyber_pre_keys WHERE account_id=$1`
	markKyberPreKeysAsUploadedQuery  = `UPDATE avrasignal_kyber_pre_keys SET uploaded=true WHERE account_id=$1 AND key_id<=$2`
	getUploadedKyberPreKeyCountQuery = `SELECT COUNT(*) FROM avrasignal_kyber_pre_keys WHERE account_id=$1 AND uploaded=true AND is_last_resort=false`
)

// PreKeyRow is one persisted prekey, still serialized.
type PreKeyRow struct {
	KeyID    uint32
	KeyPair  []byte
	Uploaded bool
}

// KyberPreKeyRow is one persisted kyber prekey, still serialized.
type KyberPreKeyRow struct {
	KeyID        uint32
	KeyPair      []byte
	IsLastResort bool
	Uploaded     bool
}

func scanKeyBytes(row dbutil.Scannable) ([]byte, error) {
	var id uint32
	var keyPair []byte
	err := row.Scan(&id, &keyPair)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return keyPair, nil
}

func (s *AgentStore) nextKeyID(ctx context.Context, query string) (uint32, error) {
	var lastKeyID sql.NullInt64
	err := s.db.QueryRow(ctx, query, s.AgentID).Scan(&lastKeyID)
	if err != nil {
		return 0, fmt.Errorf("failed to query last prekey ID: %w", err)
	}
	return uint32(lastKeyID.Int64) + 1, nil
}

func (s *AgentStore) LoadPreKey(ctx context.Context, id uint32) (*libsignalgo.PreKeyRecord, error) {
	keyPair, err := scanKeyBytes(s.db.QueryRow(ctx, getPreKeyQuery, s.AgentID, id))
	if err != nil || keyPair == nil {
		return nil, err
	}
	return libsignalgo.DeserializePreKeyRecord(keyPair)
}

func (s *AgentStore) StorePreKey(ctx context.Context, id uint32, record *libsignalgo.PreKeyRecord) error {
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize prekey: %w", err)
	}
	return s.PutPreKey(ctx, id, serialized, false)
}

func (s *AgentStore) RemovePreKey(ctx context.Context, id uint32) error {
	return s.DeletePreKey(ctx, id)
}

func (s *AgentStore) LoadSignedPreKey(ctx context.Context, id uint32) (*libsignalgo.SignedPreKeyRecord, error) {
	keyPair, err := scanKeyBytes(s.db.QueryRow(ctx, getSignedPreKeyQuery, s.AgentID, id))
	if err != nil || keyPair == nil {
		return nil, err
	}
	return libsignalgo.DeserializeSignedPreKeyRecord(keyPair)
}

func (s *AgentStore) StoreSignedPreKey(ctx context.Context, id uint32, record *libsignalgo.SignedPreKeyRecord) error {
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize signed prekey: %w", err)
	}
	return s.PutSignedPreKey(ctx, id, serialized, false)
}

func (s *AgentStore) LoadKyberPreKey(ctx context.Context, id uint32) (*libsignalgo.KyberPreKeyRecord, error) {
	keyPair, err := scanKeyBytes(s.db.QueryRow(ctx, getKyberPreKeyQuery, s.AgentID, id))
	if err != nil || keyPair == nil {
		return nil, err
	}
	return libsignalgo.DeserializeKyberPreKeyRecord(keyPair)
}

func (s *AgentStore) StoreKyberPreKey(ctx context.Context, id uint32, record *libsignalgo.KyberPreKeyRecord) error {
	serialized, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize kyber prekey: %w", err)
	}
	return s.PutKyberPreKey(ctx, id, serialized, false, false)
}

func (s *AgentStore) MarkKyberPreKeyUsed(ctx context.Context, id uint32) error {
	return s.DeleteUsedKyberPreKey(ctx, id)
}

func (s *AgentStore) GetAllPreKeys(ctx context.Context) ([]*PreKeyRow, error) {
	return s.getAllKeyRows(ctx, getAllPreKeysQuery)
}

func (s *AgentStore) GetAllSignedPreKeys(ctx context.Context) ([]*PreKeyRow, error) {
	return s.getAllKeyRows(ctx, getAllSignedPreKeysQuery)
}

func (s *AgentStore) getAllKeyRows(ctx context.Context, query string) ([]*PreKeyRow, error) {
	rows, err := s.db.Query(ctx, query, s.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prekeys: %w", err)
	}
	defer rows.Close()
	var keys []*PreKeyRow
	for rows.Next() {
		var row PreKeyRow
		err = rows.Scan(&row.KeyID, &row.KeyPair, &row.Uploaded)
		if err != nil {
			return nil, err
		}
		keys = append(keys, &row)
	}
	return keys, rows.Err()
}

func (s *AgentStore) GetAllKyberPreKeys(ctx context.Context) ([]*KyberPreKeyRow, error) {
	rows, err := s.db.Query(ctx, getAllKyberPreKeysQuery, s.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query kyber prekeys: %w", err)
	}
	defer rows.Close()
	var keys []*KyberPreKeyRow
	for rows.Next() {
		var row KyberPreKeyRow
		err = rows.Scan(&row.KeyID, &row.KeyPair, &row.IsLastResort, &row.Uploaded)
		if err != nil {
			return nil, err
		}
		keys = append(keys, &row)
	}
	return keys, rows.Err()
}

func (s *AgentStore) PutPreKey(ctx context.Context, keyID uint32, keyPair []byte, uploaded bool) error {
	_, err := s.db.Exec(ctx, putPreKeyQuery, s.AgentID, keyID, keyPair, uploaded)
	return err
}

func (s *AgentStore) PutSignedPreKey(ctx context.Context, keyID uint32, keyPair []byte, uploaded bool) error {
	_, err := s.db.Exec(ctx, putSignedPreKeyQuery, s.AgentID, keyID, keyPair, uploaded)
	return err
}

func (s *AgentStore) PutKyberPreKey(ctx context.Context, keyID uint32, keyPair []byte, lastResort, uploaded bool) error {
	_, err := s.db.Exec(ctx, putKyberPreKeyQuery, s.AgentID, keyID, keyPair, lastResort, uploaded)
	return err
}

func (s *AgentStore) DeletePreKey(ctx context.Context, keyID uint32) error {
	_, err := s.db.Exec(ctx, deletePreKeyQuery, s.AgentID, keyID)
	return err
}

func (s *AgentStore) DeleteUsedKyberPreKey(ctx context.Context, keyID uint32) error {
	_, err := s.db.Exec(ctx, deleteUsedKyberPreKeyQuery, s.AgentID, keyID)
	return err
}

func (s *AgentStore) GetNextPreKeyID(ctx context.Context) (uint32, error) {
	return s.nextKeyID(ctx, getLastPreKeyIDQuery)
}

func (s *AgentStore) GetNextSignedPreKeyID(ctx context.Context) (uint32, error) {
	return s.nextKeyID(ctx, getLastSignedPreKeyIDQuery)
}

func (s *AgentStore) GetNextKyberPreKeyID(ctx context.Context) (uint32, error) {
	return s.nextKeyID(ctx, getLastKyberPreKeyIDQuery)
}

func (s *AgentStore) MarkPreKeysAsUploaded(ctx context.Context, upToID uint32) error {
	_, err := s.db.Exec(ctx, markPreKeysAsUploadedQuery, s.AgentID, upToID)
	return err
}

func (s *AgentStore) MarkSignedPreKeysAsUploaded(ctx context.Context, upToID uint32) error {
	_, err := s.db.Exec(ctx, markSignedPreKeysAsUploadedQuery, s.AgentID, upToID)
	return err
}

func (s *AgentStore) MarkKyberPreKeysAsUploaded(ctx context.Context, upToID uint32) error {
	_, err := s.db.Exec(ctx, markKyberPreKeysAsUploadedQuery, s.AgentID, upToID)
	return err
}

func (s *AgentStore) GetUploadedPreKeyCount(ctx context.Context) (count int, err error) {
	err = s.db.QueryRow(ctx, getUploadedPreKeyCountQuery, s.AgentID).Scan(&count)
	return count, err
}

func (s *AgentStore) GetUploadedKyberPreKeyCount(ctx context.Context) (count int, err error) {
	err = s.db.QueryRow(ctx, getUploadedKyberPreKeyCountQuery, s.AgentID).Scan(&count)
	return count, err
}
