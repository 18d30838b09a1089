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
	"time"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

const oneTimePreKeyCount = 100

// RotatePreKeys generates a fresh signed prekey, a batch of one-time
// prekeys, a batch of one-shot kyber prekeys and a new last-resort kyber
// prekey, persists all of them, and publishes the public halves through the
// directory. Earlier prekeys are kept: messages in flight may still
// reference them.
func (cli *Client) RotatePreKeys(ctx context.Context) error {
	if cli.Directory == nil {
		return fmt.Errorf("no directory configured to publish keys to")
	}
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	cli.rotateLock.Lock()
	defer cli.rotateLock.Unlock()

	identityKeyPair, err := cli.GetOrGenerateIdentityKeyPair(ctx)
	if err != nil {
		return err
	}
	serializedIdentityKey, err := identityKeyPair.GetPublicKey().Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize identity key: %w", err)
	}

	nextPreKeyID, nextSignedPreKeyID, nextKyberPreKeyID := cli.protocolStore.nextIDs()

	signedPreKey, err := GenerateSignedPreKey(nextSignedPreKeyID, identityKeyPair)
	if err != nil {
		return fmt.Errorf("failed to generate signed prekey: %w", err)
	}
	preKeys, err := GeneratePreKeys(nextPreKeyID, oneTimePreKeyCount)
	if err != nil {
		return fmt.Errorf("failed to generate prekeys: %w", err)
	}
	kyberPreKeys, err := GenerateKyberPreKeys(nextKyberPreKeyID, oneTimePreKeyCount, identityKeyPair)
	if err != nil {
		return fmt.Errorf("failed to generate kyber prekeys: %w", err)
	}
	lastResortBatch, err := GenerateKyberPreKeys(nextKyberPreKeyID+oneTimePreKeyCount, 1, identityKeyPair)
	if err != nil {
		return fmt.Errorf("failed to generate last-resort kyber prekey: %w", err)
	}
	lastResortKyberPreKey := lastResortBatch[0]

	upload := &PreKeyUpload{
		ServiceID:      cli.Store.ServiceID,
		DeviceID:       cli.Store.DeviceID,
		RegistrationID: cli.Store.RegistrationID,
		IdentityKey:    serializedIdentityKey,
	}

	signedDetail, serializedSigned, err := signedPreKeyToDetail(signedPreKey)
	if err != nil {
		return fmt.Errorf("failed to convert signed prekey: %w", err)
	}
	cli.protocolStore.putSignedPreKeyBytes(signedDetail.KeyID, serializedSigned, false)
	upload.SignedPreKey = signedDetail

	for _, preKey := range preKeys {
		detail, serialized, err := preKeyToDetail(preKey)
		if err != nil {
			return fmt.Errorf("failed to convert prekey: %w", err)
		}
		cli.protocolStore.putPreKeyBytes(detail.KeyID, serialized, false)
		upload.PreKeys = append(upload.PreKeys, detail)
	}
	for _, kyberPreKey := range kyberPreKeys {
		detail, serialized, err := kyberPreKeyToDetail(kyberPreKey)
		if err != nil {
			return fmt.Errorf("failed to convert kyber prekey: %w", err)
		}
		cli.protocolStore.putKyberPreKeyBytes(detail.KeyID, serialized, false, false)
		upload.KyberPreKeys = append(upload.KyberPreKeys, detail)
	}
	lastResortDetail, serializedLastResort, err := kyberPreKeyToDetail(lastResortKyberPreKey)
	if err != nil {
		return fmt.Errorf("failed to convert last-resort kyber prekey: %w", err)
	}
	cli.protocolStore.putKyberPreKeyBytes(lastResortDetail.KeyID, serializedLastResort, true, false)
	upload.LastResortKyberPreKey = &lastResortDetail

	// The directory must never hand out a key the agent could still lose.
	err = cli.Flush(ctx)
	if err != nil {
		return fmt.Errorf("failed to flush prekeys before publishing: %w", err)
	}

	err = cli.Directory.Publish(ctx, upload)
	if err != nil {
		return fmt.Errorf("failed to publish prekeys: %w", err)
	}

	lastPreKeyID := nextPreKeyID + oneTimePreKeyCount - 1
	cli.protocolStore.markUploaded(lastPreKeyID, signedDetail.KeyID, lastResortDetail.KeyID)
	return nil
}

// FetchPreKeyBundle asks the directory for the peer device's current public
// key material.
func (cli *Client) FetchPreKeyBundle(ctx context.Context, peer PeerDevice) (*PreKeyBundle, error) {
	if cli.Directory == nil {
		return nil, fmt.Errorf("no directory configured to fetch keys for %s from", peer)
	}
	bundle, err := cli.Directory.Fetch(ctx, peer.ServiceID, peer.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prekey bundle for %s: %w", peer, err)
	}
	return bundle, nil
}

func GeneratePreKeys(startKeyID uint32, count uint32) ([]*libsignalgo.PreKeyRecord, error) {
	generatedPreKeys := make([]*libsignalgo.PreKeyRecord, 0, count)
	for i := startKeyID; i < startKeyID+count; i++ {
		privateKey, err := libsignalgo.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate private key: %w", err)
		}
		preKey, err := libsignalgo.NewPreKeyRecordFromPrivateKey(i, privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create prekey record: %w", err)
		}
		generatedPreKeys = append(generatedPreKeys, preKey)
	}
	return generatedPreKeys, nil
}

func GenerateKyberPreKeys(startKeyID uint32, count uint32, identityKeyPair *libsignalgo.IdentityKeyPair) ([]*libsignalgo.KyberPreKeyRecord, error) {
	generatedKyberPreKeys := make([]*libsignalgo.KyberPreKeyRecord, 0, count)
	for i := startKeyID; i < startKeyID+count; i++ {
		kyberPreKeyPair, err := libsignalgo.KyberKeyPairGenerate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate kyber key pair: %w", err)
		}
		publicKey, err := kyberPreKeyPair.GetPublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to get kyber public key: %w", err)
		}
		serializedPublicKey, err := publicKey.Serialize()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize kyber public key: %w", err)
		}
		signature, err := identityKeyPair.GetPrivateKey().Sign(serializedPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign kyber public key: %w", err)
		}
		preKey, err := libsignalgo.NewKyberPreKeyRecord(i, time.Now(), kyberPreKeyPair, signature)
		if err != nil {
			return nil, fmt.Errorf("failed to create kyber prekey record: %w", err)
		}
		generatedKyberPreKeys = append(generatedKyberPreKeys, preKey)
	}
	return generatedKyberPreKeys, nil
}

func GenerateSignedPreKey(signedPreKeyID uint32, identityKeyPair *libsignalgo.IdentityKeyPair) (*libsignalgo.SignedPreKeyRecord, error) {
	privateKey, err := libsignalgo.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	publicKey, err := privateKey.GetPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	serializedPublicKey, err := publicKey.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize public key: %w", err)
	}
	signature, err := identityKeyPair.GetPrivateKey().Sign(serializedPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign public key: %w", err)
	}
	signedPreKey, err := libsignalgo.NewSignedPreKeyRecordFromPrivateKey(signedPreKeyID, time.Now(), privateKey, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed prekey record: %w", err)
	}
	return signedPreKey, nil
}

func preKeyToDetail(preKey *libsignalgo.PreKeyRecord) (PreKeyDetail, []byte, error) {
	id, err := preKey.GetID()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	publicKey, err := preKey.GetPublicKey()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	serializedKey, err := publicKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	record, err := preKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	return PreKeyDetail{KeyID: id, PublicKey: serializedKey}, record, nil
}

func signedPreKeyToDetail(signedPreKey *libsignalgo.SignedPreKeyRecord) (PreKeyDetail, []byte, error) {
	id, err := signedPreKey.GetID()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	publicKey, err := signedPreKey.GetPublicKey()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	serializedKey, err := publicKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	signature, err := signedPreKey.GetSignature()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	record, err := signedPreKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	return PreKeyDetail{KeyID: id, PublicKey: serializedKey, Signature: signature}, record, nil
}

func kyberPreKeyToDetail(kyberPreKey *libsignalgo.KyberPreKeyRecord) (PreKeyDetail, []byte, error) {
	id, err := kyberPreKey.GetID()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	publicKey, err := kyberPreKey.GetPublicKey()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	serializedKey, err := publicKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	signature, err := kyberPreKey.GetSignature()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	record, err := kyberPreKey.Serialize()
	if err != nil {
		return PreKeyDetail{}, nil, err
	}
	return PreKeyDetail{KeyID: id, PublicKey: serializedKey, Signature: signature}, record, nil
}
