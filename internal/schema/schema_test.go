package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildSchema(t *testing.T) {
	root := &cobra.Command{Use: "dotsign"}
	child := &cobra.Command{Use: "metadata", Short: "metadata cache"}
	leaf := &cobra.Command{Use: "set", Short: "store a record"}
	leaf.Flags().String("origin", "", "requesting origin")
	_ = leaf.MarkFlagRequired("origin")
	child.AddCommand(leaf)
	root.AddCommand(child)

	s, err := Build(root, "metadata set")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "dotsign metadata set" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 1 || s.Flags[0].Name != "origin" || !s.Flags[0].Required {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
}

func TestBuildSchemaGlobalFlagsAndUnknownPath(t *testing.T) {
	root := &cobra.Command{Use: "dotsign"}
	root.PersistentFlags().Bool("json", false, "output JSON")
	tx := &cobra.Command{Use: "tx", Short: "transactions"}
	tx.AddCommand(&cobra.Command{Use: "confirm", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(tx)

	s, err := Build(root, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.GlobalFlags) != 1 || s.GlobalFlags[0].Name != "json" {
		t.Fatalf("unexpected global flags: %+v", s.GlobalFlags)
	}
	if len(s.Subcommands) != 1 || !s.Subcommands[0].Subcommands[0].Runnable {
		t.Fatalf("unexpected subcommands: %+v", s.Subcommands)
	}
	if _, err := Build(root, "tx sign"); err == nil {
		t.Fatal("expected error for unknown command path")
	}
}
