package config

type ContextSelection struct {
	Name      string
	Overrides map[string]string
}

const (
	ContextFileEnvVar         = "JELAPI_CONTEXTS_FILE"
	APIURLEnvVar              = "JELAPI_API_URL"
	APITokenEnvVar            = "JELAPI_API_TOKEN"
	DefaultContextCatalogPath = "~/.jelapi/contexts.yaml"
	// EnvironmentContextName names the context synthesized from environment
	// variables when the catalog is empty.
	EnvironmentContextName = "environment"
)

type ContextCatalog struct {
	Contexts   []Context `yaml:"contexts"`
	CurrentCtx string    `yaml:"current-ctx"`
}

type Context struct {
	Name string `yaml:"name"`
	API  API    `yaml:"api"`
	// HosterDomain derives api.url as https://app.<hoster-domain>/1.0/ when
	// no explicit url is configured.
	HosterDomain    string            `yaml:"hoster-domain,omitempty"`
	PlatformVersion string            `yaml:"platform-version,omitempty"`
	Preferences     map[string]string `yaml:"preferences,omitempty"`
}

type API struct {
	URL       string     `yaml:"url,omitempty"`
	Token     string     `yaml:"token,omitempty"`
	TokenFile string     `yaml:"token-file,omitempty"`
	Timeout   string     `yaml:"timeout,omitempty"`
	RateLimit *RateLimit `yaml:"rate-limit,omitempty"`
	TLS       *TLS       `yaml:"tls,omitempty"`
}

type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests-per-second"`
	Burst             int     `yaml:"burst,omitempty"`
}

type TLS struct {
	CACertFile         string `yaml:"ca-cert-file,omitempty"`
	ClientCertFile     string `yaml:"client-cert-file,omitempty"`
	ClientKeyFile      string `yaml:"client-key-file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure-skip-verify,omitempty"`
}
