package cli

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/fluxloop/fluxloop-cli/internal/config"
)

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// interactiveOutput reports whether spinners may animate: stdout must be a
// real terminal and no agent/CI environment marker may be set.
func interactiveOutput() bool {
	if !stdoutIsTerminal() {
		return false
	}
	env, err := config.New()
	if err != nil {
		return false
	}
	return env.InteractiveOutput()
}

// StatusSpinner shows a transient spinner with elapsed time while a command
// works through a multi step workflow. In non interactive environments each
// text change prints as a plain line instead. A nil spinner is disabled
// entirely, which is how --quiet suppresses workflow chatter.
type StatusSpinner struct {
	spinner     *pterm.SpinnerPrinter
	lastPrinted string
}

func NewStatusSpinner(label string) *StatusSpinner {
	if interactiveOutput() {
		spinner, err := pterm.DefaultSpinner.Start(label)
		if err == nil {
			return &StatusSpinner{spinner: spinner}
		}
	}
	fmt.Println(label)
	return &StatusSpinner{lastPrinted: label}
}

func (s *StatusSpinner) Update(text string) {
	if s == nil {
		return
	}
	if s.spinner != nil {
		s.spinner.UpdateText(text)
		return
	}
	if text != s.lastPrinted {
		fmt.Printf("  %s\n", text)
		s.lastPrinted = text
	}
}

// Stop clears the spinner without printing a result line. Commands print
// their own outcome afterwards.
func (s *StatusSpinner) Stop() {
	if s == nil || s.spinner == nil {
		return
	}
	_ = s.spinner.Stop()
}
