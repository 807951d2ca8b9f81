package core

import (
	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type JelapiContext struct {
	Contexts config.ContextService
	Context  config.Context
	Caller   connector.Caller
	Client   *jelastic.Client
}

type BootstrapConfig struct {
	ContextCatalogPath string
	UserAgent          string
	Logger             logr.Logger
	Registerer         prometheus.Registerer
	TracerProvider     trace.TracerProvider
}
