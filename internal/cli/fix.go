package cli

import (
	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/cache"
	"github.com/ralt/aurbuild/internal/checksum"
	"github.com/ralt/aurbuild/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewFixCmd creates the fix command
func NewFixCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [PKGBASE...]",
		Short: "Fix checksums and .SRCINFO files",
		Long: `Recomputes the checksums of the sources of each package base,
rewrites the stale ones in the PKGBUILD and regenerates outdated .SRCINFO
files. Without arguments only the package bases whose .SRCINFO is older
than their PKGBUILD are fixed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}

			devel := true
			pkgbases, err := scheduler.Select(cfg.RootDir, args, &devel)
			if err != nil {
				return err
			}

			makepkg := builder.NewMakepkg(cfg)
			if len(args) == 0 {
				c := cache.New(cfg.RootDir, makepkg)
				stale := pkgbases[:0]
				for _, pkgbase := range pkgbases {
					if c.Stale(pkgbase) {
						stale = append(stale, pkgbase)
					}
				}
				pkgbases = stale
			}
			if len(pkgbases) == 0 {
				logrus.Info("Nothing to fix")
				return nil
			}

			return checksum.New(cfg.RootDir, makepkg, cfg.Jobs).RepairAll(cmd.Context(), pkgbases)
		},
	}

	return cmd
}
