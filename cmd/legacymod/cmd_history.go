package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"legacymod/internal/config"
	"legacymod/internal/state"
)

var (
	historyProjectRoot string
	historyLimit       int
)

var migrationHistoryCmd = &cobra.Command{
	Use:   "migration-history",
	Short: "Print the migration-state file's run history",
	RunE:  runMigrationHistory,
}

func init() {
	migrationHistoryCmd.Flags().StringVar(&historyProjectRoot, "project", "", "project root (required)")
	migrationHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "show at most this many history entries (0 = all)")
	migrationHistoryCmd.MarkFlagRequired("project")
}

func runMigrationHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}

	store := state.NewStore(resolveUnderRoot(historyProjectRoot, cfg.Project.StatePath))
	st, err := store.Load(cfg.Migration.HistoryCap)
	if err != nil {
		return err
	}

	if exec, ok := st.Migrations[st.CurrentPlanKey]; ok {
		fmt.Printf("current: %s status=%s started=%s\n", exec.PlanKey, exec.Status, exec.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	}

	entries := st.History
	if historyLimit > 0 && historyLimit < len(entries) {
		entries = entries[:historyLimit]
	}
	fmt.Printf("history (%d entries):\n", len(entries))
	for _, exec := range entries {
		fmt.Printf("  %s status=%s started=%s ended=%s phases=%d\n",
			exec.PlanKey, exec.Status,
			exec.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			exec.EndedAt.Format("2006-01-02T15:04:05Z07:00"),
			len(exec.Phases))
	}
	return nil
}
