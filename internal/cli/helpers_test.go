package cli

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/faults"
	clitestkit "github.com/crmarques/jelapi/internal/cli/testkit"
	"github.com/crmarques/jelapi/internal/testkit"
	"github.com/spf13/cobra"
)

const (
	fnGetEnvs        = "Environment.Control.GetEnvs"
	fnGetEnvInfo     = "Environment.Control.GetEnvInfo"
	fnSetCloudlets   = "Environment.Control.SetCloudletsCountById"
	fnExecCmd        = "Environment.Control.ExecCmdById"
	fnStopEnv        = "Environment.Control.StopEnv"
	fnGetEnvVars     = "Environment.Control.GetContainerEnvVarsByGroup"
	fnSetEnvVars     = "Environment.Control.SetContainerEnvVarsByGroup"
	fnGetGroups      = "Environment.Group.GetGroups"
	fnRemoveGroup    = "Environment.Group.RemoveGroup"
	fnGetUserInfo    = "Users.Account.GetUserInfo"
	statusRunningRaw = 1
)

func executeForTest(deps Dependencies, stdin string, args ...string) (string, error) {
	result, err := clitestkit.Run(NewRootCommand(deps), stdin, args...)
	return result.Stdout, err
}

func executeForTestWithStreams(deps Dependencies, stdin string, args ...string) (clitestkit.Result, error) {
	return clitestkit.Run(NewRootCommand(deps), stdin, args...)
}

func commandByPath(root *cobra.Command, path ...string) *cobra.Command {
	command := root
	for _, name := range path {
		found := false
		for _, child := range command.Commands() {
			if child.Name() != name {
				continue
			}
			command = child
			found = true
			break
		}
		if !found {
			return nil
		}
	}
	return command
}

func envInfo(name string) map[string]any {
	return map[string]any{
		"env": map[string]any{
			"envName":           name,
			"shortdomain":       name,
			"domain":            name + ".example.net",
			"hardwareNodeGroup": "eu-1",
			"ishaenabled":       false,
			"appid":             "app-" + name,
			"createdOn":         "2024-05-02 08:00:00",
			"displayName":       "Display " + name,
			"status":            statusRunningRaw,
			"extdomains":        []any{},
			"sslstate":          true,
		},
		"envGroups": []any{},
		"nodeGroups": []any{
			map[string]any{"name": "cp", "nodeType": "nginxphp", "displayName": "App", "diskLimit": 10240},
		},
		"nodes": []any{
			map[string]any{
				"id": 11, "nodeGroup": "cp", "nodeType": "nginxphp", "intIP": "10.1.0.11",
				"url": fmt.Sprintf("http://node11-%s.example.net", name), "ismaster": true,
				"fixedCloudlets": 1, "flexibleCloudlets": 8,
			},
		},
	}
}

func newTestCaller() *testkit.Caller {
	return testkit.NewCaller().On(fnGetEnvInfo, envInfo("shop"))
}

type fakePrompter struct {
	interactive bool
	confirm     bool
	inputs      []string
	prompts     []string
}

func (p *fakePrompter) IsInteractive(*cobra.Command) bool {
	return p.interactive
}

func (p *fakePrompter) Input(_ *cobra.Command, prompt string, _ bool) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.inputs) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", prompt)
	}
	value := p.inputs[0]
	p.inputs = p.inputs[1:]
	return value, nil
}

func (p *fakePrompter) Secret(command *cobra.Command, prompt string) (string, error) {
	return p.Input(command, prompt, true)
}

func (p *fakePrompter) Select(_ *cobra.Command, prompt string, options []string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	return options[len(options)-1], nil
}

func (p *fakePrompter) Confirm(_ *cobra.Command, prompt string, _ bool) (bool, error) {
	p.prompts = append(p.prompts, prompt)
	return p.confirm, nil
}

type memoryContextService struct {
	mu       sync.Mutex
	contexts []config.Context
	current  string
}

func (s *memoryContextService) Create(_ context.Context, cfg config.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.contexts, func(item config.Context) bool { return item.Name == cfg.Name }) {
		return faults.NewTypedError(faults.ValidationError, "context already exists", nil)
	}
	s.contexts = append(s.contexts, cfg)
	return nil
}

func (s *memoryContextService) Update(_ context.Context, cfg config.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range s.contexts {
		if s.contexts[idx].Name == cfg.Name {
			s.contexts[idx] = cfg
			return nil
		}
	}
	return faults.NewTypedError(faults.NotFoundError, "context not found", nil)
}

func (s *memoryContextService) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = slices.DeleteFunc(s.contexts, func(item config.Context) bool { return item.Name == name })
	if s.current == name {
		s.current = ""
	}
	return nil
}

func (s *memoryContextService) SetCurrent(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = name
	return nil
}

func (s *memoryContextService) List(context.Context) ([]config.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.contexts), nil
}

func (s *memoryContextService) GetCurrent(ctx context.Context) (config.Context, error) {
	return s.ResolveContext(ctx, config.ContextSelection{})
}

func (s *memoryContextService) ResolveContext(_ context.Context, selection config.ContextSelection) (config.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := selection.Name
	if name == "" {
		name = s.current
	}
	for _, item := range s.contexts {
		if item.Name == name {
			return item, nil
		}
	}
	return config.Context{}, faults.NewTypedError(faults.NotFoundError, "context not found", nil)
}

func (s *memoryContextService) Validate(context.Context, config.Context) error {
	return nil
}

func assertCategory(t *testing.T, err error, category faults.ErrorCategory) {
	t.Helper()

	if !faults.IsCategory(err, category) {
		t.Fatalf("expected %s, got %v", category, err)
	}
}
