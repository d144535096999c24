package server

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// waitFor runs action behind a spinner titled title when stderr is a
// terminal, and after a plain progress line otherwise. A non-nil error
// means the spinner was aborted and action may still be running.
func waitFor(cmd *cobra.Command, title string, action func()) error {
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(cmd.ErrOrStderr(), title)
		action()
		return nil
	}

	accessible := os.Getenv("ACCESSIBLE") != ""
	return spinner.New().
		Title(title).
		Accessible(accessible).
		Output(f).
		Action(action).
		Run()
}
