package file

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/jelapi/config"
)

func validateCatalog(contextCatalog config.ContextCatalog) error {
	if len(contextCatalog.Contexts) == 0 {
		if contextCatalog.CurrentCtx != "" {
			return validationError("current-ctx must be empty when contexts list is empty", nil)
		}
		return nil
	}

	seen := map[string]struct{}{}
	for _, item := range contextCatalog.Contexts {
		if item.Name == "" {
			return validationError("context name must not be empty", nil)
		}
		if _, exists := seen[item.Name]; exists {
			return validationError(fmt.Sprintf("duplicate context name %q", item.Name), nil)
		}
		seen[item.Name] = struct{}{}

		if err := validateConfig(item); err != nil {
			return err
		}
	}

	if contextCatalog.CurrentCtx == "" {
		return validationError("current-ctx must be set when contexts are defined", nil)
	}

	if _, exists := seen[contextCatalog.CurrentCtx]; !exists {
		return validationError(fmt.Sprintf("current-ctx %q does not match any context", contextCatalog.CurrentCtx), nil)
	}

	return nil
}

func validateConfig(cfg config.Context) error {
	cfg = applyConfigDefaults(normalizeConfig(cfg))

	if cfg.Name == "" {
		return validationError("context name must not be empty", nil)
	}

	if err := validateAPI(cfg.API); err != nil {
		return err
	}

	if cfg.PlatformVersion != "" {
		if _, err := semver.NewVersion(cfg.PlatformVersion); err != nil {
			return validationError(fmt.Sprintf("platform-version %q is not a valid version", cfg.PlatformVersion), err)
		}
	}

	return nil
}

func validateAPI(api config.API) error {
	if api.URL == "" {
		return validationError("api.url is required (or set hoster-domain)", nil)
	}
	parsed, err := url.Parse(api.URL)
	if err != nil {
		return validationError("api.url is invalid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validationError("api.url must use http or https", nil)
	}
	if parsed.Host == "" {
		return validationError("api.url host is required", nil)
	}

	if countSet(api.Token != "", api.TokenFile != "") != 1 {
		return validationError("api must define exactly one of token, token-file", nil)
	}

	if api.Timeout != "" {
		timeout, err := time.ParseDuration(api.Timeout)
		if err != nil {
			return validationError(fmt.Sprintf("api.timeout %q is not a duration", api.Timeout), err)
		}
		if timeout < 0 {
			return validationError("api.timeout must not be negative", nil)
		}
	}

	if api.RateLimit != nil {
		if api.RateLimit.RequestsPerSecond <= 0 {
			return validationError("api.rate-limit.requests-per-second must be positive", nil)
		}
		if api.RateLimit.Burst < 0 {
			return validationError("api.rate-limit.burst must not be negative", nil)
		}
	}

	if api.TLS != nil {
		if (api.TLS.ClientCertFile == "") != (api.TLS.ClientKeyFile == "") {
			return validationError("api.tls requires both client-cert-file and client-key-file", nil)
		}
	}

	return nil
}

func normalizeConfig(cfg config.Context) config.Context {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.HosterDomain = strings.TrimSpace(cfg.HosterDomain)
	cfg.PlatformVersion = strings.TrimSpace(cfg.PlatformVersion)
	cfg.API.URL = strings.TrimSpace(cfg.API.URL)
	cfg.API.Token = strings.TrimSpace(cfg.API.Token)
	cfg.API.TokenFile = strings.TrimSpace(cfg.API.TokenFile)
	cfg.API.Timeout = strings.TrimSpace(cfg.API.Timeout)
	return cfg
}

func applyConfigDefaults(cfg config.Context) config.Context {
	if cfg.API.URL == "" && cfg.HosterDomain != "" {
		cfg.API.URL = hosterAPIURL(cfg.HosterDomain)
	}
	return cfg
}

// compactConfigForPersistence drops the url derived from hoster-domain so the
// file keeps following the domain.
func compactConfigForPersistence(cfg config.Context) config.Context {
	if cfg.HosterDomain != "" && cfg.API.URL == hosterAPIURL(cfg.HosterDomain) {
		cfg.API.URL = ""
	}
	return cfg
}

func hosterAPIURL(hosterDomain string) string {
	return "https://app." + strings.TrimPrefix(hosterDomain, "app.") + "/1.0/"
}

// environmentOverrides reads the process environment overrides. Explicit
// overrides win over them.
func environmentOverrides() map[string]string {
	overrides := map[string]string{}
	if value := strings.TrimSpace(os.Getenv(config.APIURLEnvVar)); value != "" {
		overrides["api.url"] = value
	}
	if value := strings.TrimSpace(os.Getenv(config.APITokenEnvVar)); value != "" {
		overrides["api.token"] = value
	}
	return overrides
}

func applyOverrides(cfg config.Context, overrides map[string]string) (config.Context, error) {
	for _, key := range sortedOverrideKeys(overrides) {
		value := strings.TrimSpace(overrides[key])
		switch key {
		case "api.url":
			cfg.API.URL = value
		case "api.token":
			cfg.API.Token = value
			cfg.API.TokenFile = ""
		case "api.token-file":
			cfg.API.TokenFile = value
			cfg.API.Token = ""
		case "api.timeout":
			cfg.API.Timeout = value
		case "api.rate-limit":
			rps, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override api.rate-limit %q is not a number", value), err)
			}
			if cfg.API.RateLimit == nil {
				cfg.API.RateLimit = &config.RateLimit{}
			} else {
				copied := *cfg.API.RateLimit
				cfg.API.RateLimit = &copied
			}
			cfg.API.RateLimit.RequestsPerSecond = rps
		case "api.tls.insecure-skip-verify":
			insecure, err := strconv.ParseBool(value)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override api.tls.insecure-skip-verify %q is not a bool", value), err)
			}
			if cfg.API.TLS == nil {
				cfg.API.TLS = &config.TLS{}
			} else {
				copied := *cfg.API.TLS
				cfg.API.TLS = &copied
			}
			cfg.API.TLS.InsecureSkipVerify = insecure
		case "hoster-domain":
			cfg.HosterDomain = value
		case "platform-version":
			cfg.PlatformVersion = value
		default:
			return config.Context{}, unknownOverrideError(key)
		}
	}

	return cfg, nil
}

func sortedOverrideKeys(overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func countSet(values ...bool) int {
	count := 0
	for _, value := range values {
		if value {
			count++
		}
	}
	return count
}
