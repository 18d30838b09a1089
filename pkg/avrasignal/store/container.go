package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store/upgrades"
	"github.com/reis-ship-it/avra-sub011/pkg/libsignalgo"
)

var _ AgentProvider = (*Container)(nil)

type AgentProvider interface {
	PutAgent(ctx context.Context, data *AgentData) error
	AgentByServiceID(ctx context.Context, serviceID uuid.UUID) (*Agent, error)
}

// Container is a wrapper for a SQL database that can contain multiple avra agents.
type Container struct {
	db *dbutil.Database
}

func NewStore(db *dbutil.Database, log dbutil.DatabaseLogger) *Container {
	return &Container{db: db.Child("avrasignal_version", upgrades.Table, log)}
}

// AgentData is the durable part of an agent: who it is and its long-term key
// material. Everything else (sessions, prekeys, peer identities) hangs off it.
type AgentData struct {
	ServiceID       uuid.UUID
	DeviceID        int
	RegistrationID  int
	IdentityKeyPair *libsignalgo.IdentityKeyPair
}

// Agent is an AgentData plus the scoped stores for everything the protocol
// engine needs to persist on its behalf.
type Agent struct {
	AgentData

	SessionStore     SessionStore
	IdentityKeyStore IdentityKeyStore
	PreKeyStore      PreKeyStore
}

const getAllAgentsQuery = `
SELECT service_id, device_id, registration_id, identity_key_pair FROM avrasignal_agent
`

const getAgentQuery = getAllAgentsQuery + " WHERE service_id=$1"

func (c *Container) Upgrade(ctx context.Context) error {
	return c.db.Upgrade(ctx)
}

func (c *Container) scanAgent(row dbutil.Scannable) (*Agent, error) {
	var agent Agent
	var identityKeyPair []byte

	err := row.Scan(&agent.ServiceID, &agent.DeviceID, &agent.RegistrationID, &identityKeyPair)
	if err != nil {
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}
	// The identity key pair is missing until the first GetOrGenerateIdentityKeyPair.
	if len(identityKeyPair) > 0 {
		agent.IdentityKeyPair, err = libsignalgo.DeserializeIdentityKeyPair(identityKeyPair)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize identity key pair: %w", err)
		}
	}

	sqlStore := &AgentStore{Container: c, AgentID: agent.ServiceID}
	agent.SessionStore = sqlStore
	agent.IdentityKeyStore = sqlStore
	agent.PreKeyStore = sqlStore

	return &agent, nil
}

// GetAllAgents finds all the agents in the database.
func (c *Container) GetAllAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := c.db.Query(ctx, getAllAgentsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()
	agents := make([]*Agent, 0)
	for rows.Next() {
		agent, scanErr := c.scanAgent(rows)
		if scanErr != nil {
			return agents, scanErr
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// AgentByServiceID finds the agent with the specified service ID in the
// database. If the agent is not found, nil is returned instead.
func (c *Container) AgentByServiceID(ctx context.Context, serviceID uuid.UUID) (*Agent, error) {
	agent, err := c.scanAgent(c.db.QueryRow(ctx, getAgentQuery, serviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return agent, err
}

const (
	insertAgentQuery = `
		INSERT INTO avrasignal_agent (service_id, device_id, registration_id, identity_key_pair)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (service_id) DO UPDATE SET
			device_id=excluded.device_id,
			registration_id=excluded.registration_id,
			identity_key_pair=excluded.identity_key_pair
	`
	deleteAgentQuery = `DELETE FROM avrasignal_agent WHERE service_id=$1`
)

// ErrAgentIDMustBeSet is the error returned by PutAgent if you try to save an
// agent before knowing its service ID.
var ErrAgentIDMustBeSet = errors.New("agent service_id must be known before accessing database")

// PutAgent stores the given agent in this database.
func (c *Container) PutAgent(ctx context.Context, agent *AgentData) error {
	if agent.ServiceID == uuid.Nil {
		return ErrAgentIDMustBeSet
	}
	var identityKeyPair []byte
	var err error
	if agent.IdentityKeyPair != nil {
		identityKeyPair, err = agent.IdentityKeyPair.Serialize()
		if err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("failed to serialize identity key pair")
			return err
		}
	}
	_, err = c.db.Exec(ctx, insertAgentQuery,
		agent.ServiceID, agent.DeviceID, agent.RegistrationID, identityKeyPair,
	)
	if err != nil {
		zerolog.Ctx(ctx).Err(err).Msg("failed to insert agent")
	}
	return err
}

// DeleteAgent deletes the given agent and all of its protocol state from this
// database.
func (c *Container) DeleteAgent(ctx context.Context, agent *AgentData) error {
	if agent.ServiceID == uuid.Nil {
		return ErrAgentIDMustBeSet
	}
	_, err := c.db.Exec(ctx, deleteAgentQuery, agent.ServiceID)
	return err
}

// AgentStore is a Container scoped to a single agent. It implements the
// engine-facing store interfaces directly against SQL, plus the byte-level
// queries the in-memory cache warms from and writes through to.
type AgentStore struct {
	*Container
	AgentID uuid.UUID
}
