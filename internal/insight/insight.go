// Package insight produces the short AI-written summary of a month's
// finances. Providers only turn a prompt into text; building the prompt and
// deciding what to show on failure belongs to the caller.
package insight

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Disabled.Generate.
var ErrDisabled = errors.New("insight: no provider configured")

// Provider generates text for a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is the provider used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}
