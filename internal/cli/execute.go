package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/internal/cli/commandmeta"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type Dependencies struct {
	Contexts config.ContextService
	Caller   connector.Caller
	Client   *jelastic.Client
	Prompter common.Prompter
}

func (d Dependencies) commandDependencies() common.CommandDependencies {
	client := d.Client
	if client == nil && d.Caller != nil {
		client = jelastic.NewClient(d.Caller)
	}
	return common.CommandDependencies{
		Contexts: d.Contexts,
		Caller:   d.Caller,
		Client:   client,
		Prompter: d.Prompter,
	}
}

// Execute runs the command line in os.Args. Commands that change remote
// state end with an [OK] or [ERROR] status line on stderr unless --no-status
// is given.
func Execute(ctx context.Context, deps Dependencies) error {
	root, globalFlags := newRootCommand(deps)
	args := os.Args[1:]
	command, err := root.ExecuteContextC(ctx)

	status := statusReporter{
		w:     root.ErrOrStderr(),
		color: colorEnabled(root.ErrOrStderr(), globalFlags.NoColor || hasNoColorArgToken(args)),
	}
	emit := !globalFlags.NoStatus && !shouldSuppressStatusMessage(args) &&
		!isHelpOrCompletionInvocation(args) &&
		command != nil && commandmeta.EmitsExecutionStatusPath(command.CommandPath())

	switch {
	case err != nil && emit:
		status.failed(err)
	case err != nil:
		_, _ = fmt.Fprintln(root.ErrOrStderr(), strings.TrimSpace(err.Error()))
	case emit:
		status.succeeded()
	}
	return err
}

func RequiresContextBootstrapPath(commandPath string) bool {
	return commandmeta.RequiresContextBootstrapPath(commandPath)
}

var exitCodes = map[faults.ErrorCategory]int{
	faults.ValidationError:   2,
	faults.TypeMismatchError: 2,
	faults.NotFoundError:     3,
	faults.AuthError:         4,
	faults.ObjectStateError:  5,
	faults.TransportError:    6,
	faults.RemoteCallError:   7,
	faults.ConvergenceError:  8,
}

// ExitCodeForError maps the error category to the process exit code. Errors
// without a category and internal errors exit with 1.
func ExitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	category, ok := faults.CategoryOf(err)
	if !ok {
		return 1
	}
	if code, known := exitCodes[category]; known {
		return code
	}
	return 1
}

type statusReporter struct {
	w     io.Writer
	color bool
}

func (r statusReporter) succeeded() {
	_, _ = fmt.Fprintf(r.w, "%s command executed successfully.\n", r.label("OK", "1;32"))
}

func (r statusReporter) failed(err error) {
	_, _ = fmt.Fprintf(r.w, "%s command execution failed: %s.\n", r.label("ERROR", "1;31"), strings.TrimSpace(err.Error()))
}

func (r statusReporter) label(status string, ansi string) string {
	label := "[" + status + "]"
	if !r.color {
		return label
	}
	return "\x1b[" + ansi + "m" + label + "\x1b[0m"
}

// colorEnabled honors NO_COLOR and only colors terminals that are not dumb.
func colorEnabled(w io.Writer, disabled bool) bool {
	if disabled || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return false
	}
	terminal := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	return terminal != "" && terminal != "dumb"
}

// shouldSuppressStatusMessage reads --no-status from the raw arguments for
// invocations cobra rejected before binding flags.
func shouldSuppressStatusMessage(args []string) bool {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)

	var noStatus bool
	flags.BoolVarP(&noStatus, "no-status", "n", false, "hide status output")
	if err := flags.Parse(args); err != nil {
		return hasNoStatusArgToken(args)
	}
	return noStatus
}

func isHelpOrCompletionInvocation(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}
	switch args[0] {
	case "completion", "__complete", "__completeNoDesc":
		return true
	}

	for _, current := range args {
		if current == "--" {
			break
		}
		if current == "--help" || current == "-h" {
			return true
		}
	}
	return false
}

func hasNoStatusArgToken(args []string) bool {
	for _, current := range args {
		if current == "--no-status" || current == "-n" {
			return true
		}
		if strings.HasPrefix(current, "--no-status=") {
			return strings.TrimSpace(strings.TrimPrefix(current, "--no-status=")) != "false"
		}
	}
	return false
}

func hasNoColorArgToken(args []string) bool {
	for _, current := range args {
		if current == "--no-color" {
			return true
		}
		if strings.HasPrefix(current, "--no-color=") {
			return strings.TrimSpace(strings.TrimPrefix(current, "--no-color=")) != "false"
		}
	}
	return false
}
