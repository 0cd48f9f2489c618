package cli

import (
	"encoding/json"
	"fmt"

	"github.com/audt-staking/backend/internal/audit"
	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openStore loads the environment configuration, overriding the journal
// backend with the --journal flag when set.
func openStore(cmd *cobra.Command, log *zap.Logger) (*config.Config, *db.Store, error) {
	cfg := config.Load()
	if backend, _ := cmd.Flags().GetString("journal"); backend != "" {
		cfg.JournalBackend = backend
	}
	if path, _ := cmd.Flags().GetString("leveldb-path"); path != "" {
		cfg.LevelDBPath = path
	}
	store, err := db.OpenStore(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func journalFlags(cmd *cobra.Command) {
	cmd.Flags().String("journal", "", "journal backend (postgres, leveldb), defaults to JOURNAL_BACKEND")
	cmd.Flags().String("leveldb-path", "", "leveldb journal path, defaults to LEVELDB_PATH")
}

func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Replay the journal and check the accounting invariants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := zap.NewNop()
			cfg, store, err := openStore(cmd, log)
			if err != nil {
				return err
			}
			defer store.Close()

			genesis, err := cfg.Genesis()
			if err != nil {
				return err
			}
			rep, err := audit.NewAuditor(genesis, store.Journal, nil, nil, nil, log).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd, rep); err != nil {
				return err
			}
			if len(rep.Violations) > 0 {
				return fmt.Errorf("%d invariant violations", len(rep.Violations))
			}
			return nil
		},
	}
	journalFlags(cmd)
	return cmd
}

func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every journaled operation as one JSON object per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := openStore(cmd, zap.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			ops, err := store.Journal.Load(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, op := range ops {
				if err := enc.Encode(op); err != nil {
					return err
				}
			}
			return nil
		},
	}
	journalFlags(cmd)
	return cmd
}
