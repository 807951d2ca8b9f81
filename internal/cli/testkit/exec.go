// Package testkit drives cobra command trees in tests.
package testkit

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
)

// Cobra mutates command and flag annotations while serving help and
// completion, so executions are serialized.
var executeMu sync.Mutex

// Result holds what one execution wrote.
type Result struct {
	Stdout string
	Stderr string
}

// Run executes command with args and stdin wired to in-memory streams.
func Run(command *cobra.Command, stdin string, args ...string) (Result, error) {
	executeMu.Lock()
	defer executeMu.Unlock()

	var stdout, stderr bytes.Buffer
	command.SetOut(&stdout)
	command.SetErr(&stderr)
	command.SetIn(strings.NewReader(stdin))
	command.SetArgs(args)

	err := command.ExecuteContext(context.Background())
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// CommandPaths lists the space separated paths of every user facing command
// below root, in sorted order.
func CommandPaths(root *cobra.Command) []string {
	var paths []string
	var walk func(command *cobra.Command, prefix string)
	walk = func(command *cobra.Command, prefix string) {
		for _, child := range command.Commands() {
			name := child.Name()
			if name == "help" || name == "completion" || strings.HasPrefix(name, "__") {
				continue
			}
			path := strings.TrimSpace(prefix + " " + name)
			paths = append(paths, path)
			walk(child, path)
		}
	}
	walk(root, "")
	slices.Sort(paths)
	return paths
}
