package core

import (
	"strings"

	"github.com/crmarques/jelapi/config"
	httpconnector "github.com/crmarques/jelapi/internal/providers/connector/http"
)

func buildGateway(resolvedContext config.Context, opts BootstrapConfig) (*httpconnector.Gateway, error) {
	gatewayOptions := []httpconnector.GatewayOption{}
	if strings.TrimSpace(opts.UserAgent) != "" {
		gatewayOptions = append(gatewayOptions, httpconnector.WithUserAgent(opts.UserAgent))
	}
	if opts.Registerer != nil {
		gatewayOptions = append(gatewayOptions, httpconnector.WithRegisterer(opts.Registerer))
	}
	if opts.TracerProvider != nil {
		gatewayOptions = append(gatewayOptions, httpconnector.WithTracerProvider(opts.TracerProvider))
	}
	return httpconnector.NewGateway(resolvedContext, gatewayOptions...)
}
