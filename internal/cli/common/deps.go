package common

import (
	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/jelastic"
)

type CommandDependencies struct {
	Contexts config.ContextService
	Caller   connector.Caller
	Client   *jelastic.Client
	Prompter Prompter
}

func RequireContexts(deps CommandDependencies) (config.ContextService, error) {
	if deps.Contexts == nil {
		return nil, ValidationError("context service is not configured", nil)
	}
	return deps.Contexts, nil
}

func RequireClient(deps CommandDependencies) (*jelastic.Client, error) {
	if deps.Client == nil {
		return nil, ValidationError("client is not configured", nil)
	}
	return deps.Client, nil
}

func RequireCaller(deps CommandDependencies) (connector.Caller, error) {
	if deps.Caller == nil {
		return nil, ValidationError("connector is not configured", nil)
	}
	return deps.Caller, nil
}

func ResolvePrompter(deps CommandDependencies) Prompter {
	if deps.Prompter == nil {
		return TerminalPrompter{}
	}
	return deps.Prompter
}
