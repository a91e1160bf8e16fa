package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestDevelValue(t *testing.T) {
	tests := []struct {
		args []string
		want *bool
	}{
		{nil, nil},
		{[]string{"--devel"}, ptr(true)},
		{[]string{"--no-devel"}, ptr(false)},
		{[]string{"--devel=false"}, ptr(false)},
	}

	for _, tt := range tests {
		cmd := &cobra.Command{Use: "test"}
		develFlags(cmd)
		if err := cmd.ParseFlags(tt.args); err != nil {
			t.Fatalf("ParseFlags(%v) failed: %v", tt.args, err)
		}

		got := develValue(cmd)
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil || *got != *tt.want:
			t.Errorf("develValue(%v) = %v, want %v", tt.args, show(got), show(tt.want))
		}
	}
}

func TestSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"build", "outofdate", "fix"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered: %v", name, err)
		}
	}

	build, _, _ := root.Find([]string{"build"})
	for _, flag := range []string{"devel", "no-devel", "dry-run"} {
		if build.Flags().Lookup(flag) == nil {
			t.Errorf("build has no --%s flag", flag)
		}
	}
	for _, flag := range []string{"verbose", "quiet", "config", "root", "jobs"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("root has no --%s flag", flag)
		}
	}
}

func ptr(b bool) *bool { return &b }

func show(b *bool) string {
	if b == nil {
		return "unset"
	}
	if *b {
		return "true"
	}
	return "false"
}
