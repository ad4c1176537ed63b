package cli

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "shell", "stats"} {
		if !names[want] {
			t.Errorf("Subcommand %s is not registered", want)
		}
	}
}

func TestShellHelpText(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() != "shell" {
			continue
		}
		// The interactive help verb prints the command's Long text, so
		// it must carry the full command listing
		if c.Long == "" {
			t.Fatal("Shell command has no help text")
		}
		return
	}
	t.Fatal("Shell command not found")
}
