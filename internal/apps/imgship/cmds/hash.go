package imgship

import (
	"fmt"

	"github.com/0xa1bed0/imgship/internal/changes"
	"github.com/0xa1bed0/imgship/internal/pipeline"
	"github.com/spf13/cobra"
)

func (a *app) newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [PATH...]",
		Short: "Print the change digest of the tracked files",
		Long: `Print the digest the setup image change check would compute.

With no PATH, the setup Dockerfile and the workflow file are hashed.
Paths are relative to the workspace. The change cache is not read or written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireImage(); err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = []string{pipeline.SetupDockerfile, a.cfg.WorkflowFile}
			}

			detector, err := changes.New(a.cfg.Workspace, nil, changes.WithSalt(a.cfg.Identity().Salt()))
			if err != nil {
				return err
			}
			dgst, _, err := detector.Digest(paths)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), dgst.String())
			return nil
		},
	}

	return cmd
}
