package sms

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandProvider shells out to a local gateway command, e.g.
// `gammu sendsms TEXT {{.To}} -text {{.Body}}`. Placeholders are replaced
// before execution.
type CommandProvider struct {
	command string
}

// NewCommandProvider creates a CommandProvider from a shell template.
func NewCommandProvider(command string) (*CommandProvider, error) {
	if command == "" {
		return nil, fmt.Errorf("sms: command provider: command is required")
	}
	return &CommandProvider{command: command}, nil
}

// Send runs the templated command.
func (p *CommandProvider) Send(ctx context.Context, to, body string) error {
	r := strings.NewReplacer(
		"{{.To}}", to,
		"{{.Body}}", body,
	)
	cmdStr := r.Replace(p.command)
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sms: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
