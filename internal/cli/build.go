package cli

import (
	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	dryRun bool
}

// NewBuildCmd creates the build command
func NewBuildCmd(global *globalOptions) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build [PKGBASE...]",
		Short: "Build packages",
		Long: `Builds the named package bases, or every package base of the root
directory, skipping those whose version is already in a local repository.
Packages are built in dependency order and added to the repository that
held their previous version.

By default VCS packages are included when package bases are named and
excluded otherwise; --devel and --no-devel override this.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			cfg, err = scheduler.Resolve(cfg)
			if err != nil {
				return err
			}
			logrus.Debugf("Configuration: %+v", cfg)

			makepkg := builder.NewMakepkg(cfg)
			s := scheduler.New(cfg, makepkg, makepkg)
			s.Out = cmd.OutOrStdout()
			return s.Run(cmd.Context(), args, develValue(cmd), opts.dryRun)
		},
	}

	develFlags(cmd)
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print the build plan without building")

	return cmd
}
