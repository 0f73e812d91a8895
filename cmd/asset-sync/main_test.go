package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestResolveRequestedLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		verbose  string // "" leaves --verbose unset
		noCmd    bool
		expected string
	}{
		{name: "explicit level wins", flag: "warn", verbose: "true", expected: "warn"},
		{name: "explicit level without command", flag: "error", noCmd: true, expected: "error"},
		{name: "verbose means debug", verbose: "true", expected: "debug"},
		{name: "verbose false", verbose: "false", expected: ""},
		{name: "verbose unset", expected: ""},
		{name: "nothing requested", noCmd: true, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := logLevel
			logLevel = tt.flag
			t.Cleanup(func() { logLevel = prev })

			var cmd *cobra.Command
			if !tt.noCmd {
				cmd = &cobra.Command{Use: "test"}
				cmd.Flags().Bool("verbose", false, "")
				if tt.verbose != "" {
					if err := cmd.Flags().Set("verbose", tt.verbose); err != nil {
						t.Fatalf("set verbose: %v", err)
					}
				}
			}

			if got := resolveRequestedLogLevel(cmd); got != tt.expected {
				t.Errorf("resolveRequestedLogLevel() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAttachLoggingHooksAddsHookToSubcommands(t *testing.T) {
	root := createRootCommand()
	for _, path := range [][]string{{"sync"}, {"cache", "list"}, {"bundle", "export"}} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v command: %v", path, err)
		}
		if cmd == nil {
			t.Fatalf("%v command not found", path)
		}
		if cmd.PersistentPreRunE == nil {
			t.Errorf("expected logging hook on %v command", path)
		}
	}
}

func TestAttachLoggingHooksKeepsExistingHook(t *testing.T) {
	called := false
	parent := &cobra.Command{Use: "parent"}
	child := &cobra.Command{
		Use: "child",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			called = true
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	parent.AddCommand(child)
	attachLoggingHooks(parent)

	if err := child.PersistentPreRunE(child, nil); err != nil {
		t.Fatalf("hook returned error: %v", err)
	}
	if !called {
		t.Error("existing hook was not called")
	}
}

func TestRootCommandRejectsBadLogLevel(t *testing.T) {
	prev := logLevel
	t.Cleanup(func() { logLevel = prev })

	root := createRootCommand()
	root.SetArgs([]string{"--log-level", "chatty", "version"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
