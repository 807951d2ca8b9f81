package common

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// Prompter asks the user for values. Commands receive it through their
// dependencies so tests can answer prompts.
type Prompter interface {
	IsInteractive(command *cobra.Command) bool
	Input(command *cobra.Command, prompt string, required bool) (string, error)
	Secret(command *cobra.Command, prompt string) (string, error)
	Select(command *cobra.Command, prompt string, options []string) (string, error)
	Confirm(command *cobra.Command, prompt string, defaultYes bool) (bool, error)
}

// TerminalPrompter renders huh forms on the command streams.
type TerminalPrompter struct{}

var _ Prompter = TerminalPrompter{}

func (TerminalPrompter) IsInteractive(command *cobra.Command) bool {
	return IsInteractiveTerminal(command)
}

func (p TerminalPrompter) Input(command *cobra.Command, prompt string, required bool) (string, error) {
	var value string
	field := huh.NewInput().Title(promptTitle(prompt)).Value(&value)
	if required {
		field.Validate(huh.ValidateNotEmpty())
	}
	if err := p.ask(command, field); err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if required && value == "" {
		return "", ValidationError("value is required", nil)
	}
	return value, nil
}

// Secret reads a value without echoing it.
func (p TerminalPrompter) Secret(command *cobra.Command, prompt string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(promptTitle(prompt)).
		EchoMode(huh.EchoModePassword).
		Validate(huh.ValidateNotEmpty()).
		Value(&value)
	if err := p.ask(command, field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (p TerminalPrompter) Select(command *cobra.Command, prompt string, options []string) (string, error) {
	if len(options) == 0 {
		return "", ValidationError("no options available", nil)
	}
	selected := options[0]
	field := huh.NewSelect[string]().
		Title(promptTitle(prompt)).
		Options(huh.NewOptions(options...)...).
		Value(&selected)
	if err := p.ask(command, field); err != nil {
		return "", err
	}
	return selected, nil
}

func (p TerminalPrompter) Confirm(command *cobra.Command, prompt string, defaultYes bool) (bool, error) {
	value := defaultYes
	field := huh.NewConfirm().Title(promptTitle(prompt)).Value(&value)
	if err := p.ask(command, field); err != nil {
		return false, err
	}
	return value, nil
}

// ask runs a single field form on the command streams.
func (p TerminalPrompter) ask(command *cobra.Command, field huh.Field) error {
	if !p.IsInteractive(command) {
		return ValidationError("interactive terminal is required", nil)
	}
	err := huh.NewForm(huh.NewGroup(field)).
		WithInput(command.InOrStdin()).
		WithOutput(command.OutOrStdout()).
		WithShowHelp(false).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ValidationError("interactive prompt interrupted", nil)
	}
	return err
}

func promptTitle(prompt string) string {
	title := strings.TrimSuffix(strings.TrimSpace(prompt), ":")
	if title == "" {
		return "Input"
	}
	return title
}

// ConfirmAction returns true when assumeYes is set, otherwise asks on an
// interactive terminal. Non interactive sessions are refused.
func ConfirmAction(command *cobra.Command, prompter Prompter, prompt string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if prompter == nil {
		prompter = TerminalPrompter{}
	}
	if !prompter.IsInteractive(command) {
		return false, ValidationError("confirmation required: rerun with --yes", nil)
	}
	return prompter.Confirm(command, prompt, false)
}
