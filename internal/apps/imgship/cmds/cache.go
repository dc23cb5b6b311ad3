package imgship

import (
	"fmt"
	"time"

	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/spf13/cobra"
)

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the change cache",
	}

	cmd.AddCommand(a.newCachePruneCmd())

	return cmd
}

func (a *app) newCachePruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop change entries no run has used recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			ctx := cmd.Context()

			store, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			cutoff := time.Now().Add(-olderThan)
			removed, err := store.Prune(ctx, cutoff)
			if err != nil {
				return err
			}
			left, err := store.Len(ctx)
			if err != nil {
				return err
			}

			logs.Debugf("pruned entries unused since %s", cutoff.Format(time.RFC3339))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries, %d left\n", removed, left)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "remove entries not used for this long")

	return cmd
}
