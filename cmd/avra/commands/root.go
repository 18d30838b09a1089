package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/exzerolog"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
	"github.com/reis-ship-it/avra-sub011/pkg/bundledir"
)

var (
	configPath string
	cfg        *Config
	db         *dbutil.Database
	container  *store.Container
)

func ExecuteContext(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "avra",
		Short:         "End-to-end encrypted messaging between autonomous agents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = LoadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := cfg.Logging.Compile()
			if err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}
			exzerolog.SetupDefaults(log)
			avrasignal.SetLogger(log.With().Str("component", "avrasignal").Logger())
			db, err = dbutil.NewFromConfig("avra", cfg.Database, dbutil.ZeroLogger(log.With().Str("db_section", "main").Logger()))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			container = store.NewStore(db, dbutil.ZeroLogger(log.With().Str("db_section", "avrasignal").Logger()))
			err = container.Upgrade(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to upgrade database: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db != nil {
				_ = db.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	root.AddCommand(initCmd(), rotateKeysCmd(), safetyNumberCmd(), encryptCmd(), decryptCmd(), statusCmd())
	return root.ExecuteContext(ctx)
}

// resolveAgent finds the provisioned local agent, either by the configured
// service ID or as the database's sole agent row.
func resolveAgent(ctx context.Context) (*store.Agent, error) {
	if cfg.Agent.ServiceID != "" {
		serviceID, err := uuid.Parse(cfg.Agent.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("invalid agent.service_id in config: %w", err)
		}
		agent, err := container.AgentByServiceID(ctx, serviceID)
		if err != nil {
			return nil, err
		} else if agent == nil {
			return nil, fmt.Errorf("agent %s not found, run `avra init` first", serviceID)
		}
		return agent, nil
	}
	agents, err := container.GetAllAgents(ctx)
	if err != nil {
		return nil, err
	}
	switch len(agents) {
	case 0:
		return nil, fmt.Errorf("no agent provisioned yet, run `avra init` first")
	case 1:
		return agents[0], nil
	default:
		return nil, fmt.Errorf("database holds %d agents, set agent.service_id in the config", len(agents))
	}
}

func openClient(ctx context.Context) (*avrasignal.Client, error) {
	agent, err := resolveAgent(ctx)
	if err != nil {
		return nil, err
	}
	var directory avrasignal.Directory
	if cfg.Directory.URL != "" {
		directory = bundledir.NewClient(cfg.Directory.URL)
	}
	cli := avrasignal.NewClient(agent, directory)
	err = cli.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func requireDirectory() error {
	if cfg.Directory.URL == "" {
		return fmt.Errorf("no directory configured, set directory.url in the config")
	}
	return nil
}
