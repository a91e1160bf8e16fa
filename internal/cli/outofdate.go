package cli

import (
	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/scheduler"
	"github.com/ralt/aurbuild/internal/upstream"
	"github.com/spf13/cobra"
)

// NewOutOfDateCmd creates the outofdate command
func NewOutOfDateCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outofdate [PKGBASE...]",
		Short: "Check for new versions upstream",
		Long: `Runs the LATESTVER script of each package base and prints the
upstream versions newer than the packaged pkgver-pkgrel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}

			pkgbases, err := scheduler.Select(cfg.RootDir, args, develValue(cmd))
			if err != nil {
				return err
			}

			checker := upstream.New(cfg.RootDir, builder.NewMakepkg(cfg), cfg.Jobs)
			results, err := checker.CheckAll(cmd.Context(), pkgbases)
			upstream.Print(cmd.OutOrStdout(), results)
			return err
		},
	}

	develFlags(cmd)

	return cmd
}
