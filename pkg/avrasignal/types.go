package avrasignal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

// PeerDevice identifies one device of a remote agent. All session state is
// keyed by the pair, not just the service ID, since each device of an agent
// runs its own ratchet.
type PeerDevice struct {
	ServiceID uuid.UUID
	DeviceID  int
}

func (pd PeerDevice) String() string {
	return fmt.Sprintf("%s.%d", pd.ServiceID, pd.DeviceID)
}

// Address converts the peer device into a libsignal protocol address.
// The caller owns the returned handle.
func (pd PeerDevice) Address() (*libsignalgo.Address, error) {
	return libsignalgo.NewAddress(pd.ServiceID.String(), uint(pd.DeviceID))
}

// EncryptedMessage is the output of EncryptMessage: an opaque ciphertext
// plus the envelope type the recipient needs to pick a decryption path.
type EncryptedMessage struct {
	Ciphertext []byte
	Type       libsignalgo.CiphertextMessageType
	Timestamp  time.Time
}

// IsPreKeyMessage reports whether the ciphertext carries the session
// establishment preamble. The first few messages to a fresh peer do, until
// the peer responds and the ratchet completes.
func (em *EncryptedMessage) IsPreKeyMessage() bool {
	return em.Type == libsignalgo.CiphertextMessageTypePreKey
}
