package cli

import (
	"github.com/ralt/aurbuild/internal/config"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	verbose bool
	quiet   bool
	flags   config.Flags
}

// load reads the configuration of the run.
func (o *globalOptions) load() (models.Config, error) {
	return config.Load(o.flags)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "aurbuild",
		Short: "Build a tree of PKGBUILDs into local pacman repositories",
		Long: `Aurbuild maintains a directory of PKGBUILDs, one package base per
subdirectory, and publishes the built packages to the local file://
repositories configured in pacman.conf.

Subcommands:
  - build      build the packages missing from the repositories, in dependency order
  - outofdate  run the LATESTVER scripts to find newer upstream releases
  - fix        repair stale source checksums and refresh .SRCINFO files`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			switch {
			case opts.verbose:
				logrus.SetLevel(logrus.DebugLevel)
			case opts.quiet:
				logrus.SetLevel(logrus.WarnLevel)
			default:
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&opts.flags.ConfigFile, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.flags.RootDir, "root", "", "Directory holding the package bases (defaults to the working directory)")
	rootCmd.PersistentFlags().IntVarP(&opts.flags.Jobs, "jobs", "j", 0, "Number of concurrent jobs (defaults to the number of CPUs)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Add subcommands
	rootCmd.AddCommand(NewBuildCmd(opts))
	rootCmd.AddCommand(NewOutOfDateCmd(opts))
	rootCmd.AddCommand(NewFixCmd(opts))

	return rootCmd
}

// develFlags registers --devel and --no-devel on cmd.
func develFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("devel", false, "Include VCS packages (the default when packages are named)")
	cmd.Flags().Bool("no-devel", false, "Exclude VCS packages (the default when no package is named)")
	cmd.MarkFlagsMutuallyExclusive("devel", "no-devel")
}

// develValue returns the tri-state devel setting: nil unless one of the
// flags was given.
func develValue(cmd *cobra.Command) *bool {
	var devel *bool
	if cmd.Flags().Changed("devel") {
		v, _ := cmd.Flags().GetBool("devel")
		devel = &v
	}
	if cmd.Flags().Changed("no-devel") {
		v, _ := cmd.Flags().GetBool("no-devel")
		v = !v
		devel = &v
	}
	return devel
}
