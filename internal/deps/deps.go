// Package deps locates the external executables captioner shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotConfigured is reported for a binary with an empty command.
var ErrNotConfigured = errors.New("command not configured")

// Binary names an executable and whether captioner can run without it.
type Binary struct {
	Name     string
	Command  string
	Optional bool
}

// Check is the lookup result for one Binary. Path is set when the command
// was found; Err explains why it was not.
type Check struct {
	Binary
	Path string
	Err  error
}

// Available reports whether the binary was found.
func (c Check) Available() bool { return c.Err == nil }

// Detail is a one-line description for check listings.
func (c Check) Detail() string {
	if c.Err != nil {
		return c.Err.Error()
	}
	return c.Path
}

// Lookup resolves every binary against PATH, preserving order.
func Lookup(binaries ...Binary) []Check {
	checks := make([]Check, 0, len(binaries))
	for _, b := range binaries {
		b.Command = strings.TrimSpace(b.Command)
		c := Check{Binary: b}
		switch path, err := exec.LookPath(b.Command); {
		case b.Command == "":
			c.Err = ErrNotConfigured
		case err != nil:
			c.Err = fmt.Errorf("binary %q not found", b.Command)
		default:
			c.Path = path
		}
		checks = append(checks, c)
	}
	return checks
}

// Available reports whether command resolves on PATH.
func Available(command string) bool {
	return Lookup(Binary{Command: command})[0].Available()
}
