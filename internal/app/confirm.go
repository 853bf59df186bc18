package app

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// PromptConfirmer asks yes/no questions on the terminal.
type PromptConfirmer struct{}

// Confirm prompts the user and returns their answer. An aborted
// prompt counts as no.
func (PromptConfirmer) Confirm(question string) bool {
	prompt := promptui.Prompt{
		Label:     question,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false
		}
		return false
	}
	return true
}

// StaticConfirmer answers every question the same way. Used when the
// session runs non-interactively.
type StaticConfirmer bool

// Confirm returns the fixed answer.
func (c StaticConfirmer) Confirm(string) bool { return bool(c) }
