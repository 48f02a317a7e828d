package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompter asks the operator for input.
type Prompter interface {
	Input(ctx context.Context, title, placeholder string) (string, error)
	Secret(ctx context.Context, title string) (string, error)
}

// HuhPrompter prompts on the terminal.
type HuhPrompter struct{}

// Ensure HuhPrompter implements Prompter at compile time.
var _ Prompter = HuhPrompter{}

func (HuhPrompter) Input(ctx context.Context, title, placeholder string) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Validate(required).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func (HuhPrompter) Secret(ctx context.Context, title string) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(required).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return value, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value is required")
	}
	return nil
}
