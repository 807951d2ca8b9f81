package core

import (
	"context"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/faults"
	configfile "github.com/crmarques/jelapi/internal/providers/config/file"
	"github.com/crmarques/jelapi/jelastic"
)

func NewContextService(opts BootstrapConfig) config.ContextService {
	return configfile.NewFileContextService(opts.ContextCatalogPath)
}

// NewJelapiContext resolves the selected context and wires the HTTP gateway
// and the resource client on top of it.
func NewJelapiContext(ctx context.Context, opts BootstrapConfig, selection config.ContextSelection) (JelapiContext, error) {
	contextService := NewContextService(opts)

	resolvedContext, err := contextService.ResolveContext(ctx, selection)
	if err != nil {
		return JelapiContext{}, err
	}

	caller, err := buildGateway(resolvedContext, opts)
	if err != nil {
		return JelapiContext{}, err
	}
	if caller == nil {
		return JelapiContext{}, faults.NewTypedError(faults.InternalError, "connector gateway is not configured", nil)
	}

	opts.Logger.V(1).Info("context resolved", "context", resolvedContext.Name, "url", resolvedContext.API.URL)

	return JelapiContext{
		Contexts: contextService,
		Context:  resolvedContext,
		Caller:   caller,
		Client:   jelastic.NewClient(caller),
	}, nil
}
