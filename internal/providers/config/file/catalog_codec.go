package file

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crmarques/jelapi/config"
	"go.yaml.in/yaml/v3"
)

func decodeCatalogFile(path string) (config.ContextCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.ContextCatalog{}, err
	}
	return decodeCatalog(data)
}

// decodeCatalog rejects unknown keys so typos in hand edited catalogs
// surface instead of silently dropping settings.
func decodeCatalog(data []byte) (config.ContextCatalog, error) {
	var catalog config.ContextCatalog
	if len(bytes.TrimSpace(data)) == 0 {
		return catalog, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		return config.ContextCatalog{}, validationError("invalid context catalog yaml", err)
	}
	return catalog, nil
}

func encodeCatalog(catalog config.ContextCatalog) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(catalog); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// resolveCatalogPath picks the explicit path, then JELAPI_CONTEXTS_FILE, then
// ~/.jelapi/contexts.yaml. Relative paths are taken from the home directory.
func resolveCatalogPath(explicitPath string) (string, error) {
	path := cmp.Or(
		strings.TrimSpace(explicitPath),
		strings.TrimSpace(os.Getenv(config.ContextFileEnvVar)),
		config.DefaultContextCatalogPath,
	)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", internalError("failed to resolve user home directory", err)
	}
	path = expandHome(path, homeDir)

	cleanPath := filepath.Clean(path)
	if cleanPath == "." {
		return "", validationError("context catalog path is invalid", errors.New("resolved to current directory"))
	}
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(homeDir, cleanPath)
	}
	return cleanPath, nil
}

func expandHome(path string, homeDir string) string {
	switch {
	case path == "~":
		return homeDir
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
	default:
		return path
	}
}

func unknownOverrideError(key string) error {
	return validationError(fmt.Sprintf("unknown override key %q", key), nil)
}
