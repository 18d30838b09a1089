package avrasignal

import (
	"context"
	"fmt"

	"go.mau.fi/util/ptr"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// EstablishSession runs the PQXDH handshake against a fetched prekey bundle
// and leaves the resulting session in the store. Establishment is
// post-quantum only: a bundle without a usable kyber prekey is rejected
// before any engine call.
func (cli *Client) EstablishSession(ctx context.Context, peer PeerDevice, bundle *PreKeyBundle) error {
	err := cli.Prepare(ctx)
	if err != nil {
		return err
	}
	if bundle.KyberPreKey == nil {
		return &MissingKeyMaterialError{Field: "pqPreKey"}
	} else if len(bundle.KyberPreKey.PublicKey) == 0 {
		return &MissingKeyMaterialError{Field: "pqPreKey.publicKey"}
	} else if len(bundle.KyberPreKey.Signature) == 0 {
		return &MissingKeyMaterialError{Field: "pqPreKey.signature"}
	}

	identityKey, err := libsignalgo.DeserializeIdentityKey(bundle.IdentityKey)
	if err != nil {
		return fmt.Errorf("failed to deserialize identity key: %w", err)
	}
	defer identityKey.GetPublicKey().Destroy()

	var preKeyID *uint32
	var preKey *libsignalgo.PublicKey
	if bundle.PreKey != nil {
		preKeyID = ptr.Ptr(bundle.PreKey.KeyID)
		preKey, err = libsignalgo.DeserializePublicKey(bundle.PreKey.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to deserialize prekey: %w", err)
		}
		defer preKey.Destroy()
	}

	signedPreKey, err := libsignalgo.DeserializePublicKey(bundle.SignedPreKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to deserialize signed prekey: %w", err)
	}
	defer signedPreKey.Destroy()

	kyberPreKey, err := libsignalgo.DeserializeKyberPublicKey(bundle.KyberPreKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to deserialize kyber prekey: %w", err)
	}
	defer kyberPreKey.Destroy()

	nativeBundle, err := libsignalgo.NewPreKeyBundle(
		uint32(bundle.RegistrationID),
		uint32(bundle.DeviceID),
		preKeyID,
		preKey,
		bundle.SignedPreKey.KeyID,
		signedPreKey,
		bundle.SignedPreKey.Signature,
		bundle.KyberPreKey.KeyID,
		kyberPreKey,
		bundle.KyberPreKey.Signature,
		identityKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create prekey bundle: %w", err)
	}
	defer nativeBundle.Destroy()

	address, err := peer.Address()
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	defer address.Destroy()

	// The engine call can't be interrupted, so honor cancellation while no
	// session state exists yet.
	if err = ctx.Err(); err != nil {
		return err
	}
	err = libsignalgo.ProcessPreKeyBundle(ctx, nativeBundle, address, cli.protocolStore, cli.protocolStore)
	if err != nil {
		return translateSignalError(err)
	}
	sessionsEstablished.Inc()
	return nil
}

// ensureSession makes sure a ratchet exists with the peer device, fetching
// and processing its bundle if there is none. The caller must hold the
// device lock.
func (cli *Client) ensureSession(ctx context.Context, peer PeerDevice) error {
	if cli.protocolStore.hasSession(peer) {
		return nil
	}
	bundle, err := cli.FetchPreKeyBundle(ctx, peer)
	if err != nil {
		return err
	}
	return cli.EstablishSession(ctx, peer, bundle)
}
