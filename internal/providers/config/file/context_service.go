package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/faults"
)

var _ config.ContextService = (*FileContextService)(nil)

// FileContextService keeps the context catalog in a single YAML file that
// only its owner may read.
type FileContextService struct {
	contextCatalogPath string
}

func NewFileContextService(path string) *FileContextService {
	return &FileContextService{contextCatalogPath: path}
}

func (m *FileContextService) Create(_ context.Context, cfg config.Context) error {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	return m.mutate(func(catalog *config.ContextCatalog) error {
		if contextIndex(catalog.Contexts, cfg.Name) >= 0 {
			return validationError(fmt.Sprintf("context %q already exists", cfg.Name), nil)
		}
		catalog.Contexts = append(catalog.Contexts, cfg)
		if catalog.CurrentCtx == "" {
			catalog.CurrentCtx = cfg.Name
		}
		return nil
	})
}

func (m *FileContextService) Update(_ context.Context, cfg config.Context) error {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	return m.mutate(func(catalog *config.ContextCatalog) error {
		idx := contextIndex(catalog.Contexts, cfg.Name)
		if idx < 0 {
			return contextNotFound(cfg.Name)
		}
		catalog.Contexts[idx] = cfg
		return nil
	})
}

// Delete removes a context. When it was current, the first remaining
// context becomes current.
func (m *FileContextService) Delete(_ context.Context, name string) error {
	return m.mutate(func(catalog *config.ContextCatalog) error {
		idx := contextIndex(catalog.Contexts, name)
		if idx < 0 {
			return contextNotFound(name)
		}
		catalog.Contexts = slices.Delete(catalog.Contexts, idx, idx+1)
		if catalog.CurrentCtx != name {
			return nil
		}
		catalog.CurrentCtx = ""
		if len(catalog.Contexts) > 0 {
			catalog.CurrentCtx = catalog.Contexts[0].Name
		}
		return nil
	})
}

func (m *FileContextService) SetCurrent(_ context.Context, name string) error {
	return m.mutate(func(catalog *config.ContextCatalog) error {
		if contextIndex(catalog.Contexts, name) < 0 {
			return contextNotFound(name)
		}
		catalog.CurrentCtx = name
		return nil
	})
}

func (m *FileContextService) List(_ context.Context) ([]config.Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return nil, err
	}
	return slices.Clone(catalog.Contexts), nil
}

func (m *FileContextService) GetCurrent(_ context.Context) (config.Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return config.Context{}, err
	}
	if catalog.CurrentCtx == "" {
		return config.Context{}, notFoundError("current context not set")
	}

	idx := contextIndex(catalog.Contexts, catalog.CurrentCtx)
	if idx < 0 {
		return config.Context{}, notFoundError(fmt.Sprintf("current context %q not found", catalog.CurrentCtx))
	}
	return catalog.Contexts[idx], nil
}

// ResolveContext layers JELAPI_* environment overrides and then the explicit
// selection overrides on top of the stored context. An empty catalog with
// JELAPI_API_URL set resolves to a context named "environment".
func (m *FileContextService) ResolveContext(_ context.Context, selection config.ContextSelection) (config.Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return config.Context{}, err
	}

	envOverrides := environmentOverrides()
	selected, err := selectStoredContext(catalog, strings.TrimSpace(selection.Name), envOverrides)
	if err != nil {
		return config.Context{}, err
	}

	resolved := normalizeConfig(selected)
	for _, overrides := range []map[string]string{envOverrides, selection.Overrides} {
		if resolved, err = applyOverrides(resolved, overrides); err != nil {
			return config.Context{}, err
		}
	}
	resolved = applyConfigDefaults(resolved)
	if err := validateConfig(resolved); err != nil {
		return config.Context{}, err
	}
	return resolved, nil
}

func (m *FileContextService) Validate(_ context.Context, cfg config.Context) error {
	return validateConfig(normalizeConfig(cfg))
}

func selectStoredContext(catalog config.ContextCatalog, name string, envOverrides map[string]string) (config.Context, error) {
	if name == "" {
		name = catalog.CurrentCtx
	}
	if name == "" {
		if len(catalog.Contexts) == 0 && envOverrides["api.url"] != "" {
			return config.Context{Name: config.EnvironmentContextName}, nil
		}
		return config.Context{}, notFoundError("current context not set")
	}

	idx := contextIndex(catalog.Contexts, name)
	if idx < 0 {
		return config.Context{}, contextNotFound(name)
	}
	return catalog.Contexts[idx], nil
}

// mutate loads the catalog, applies change and persists the result. Nothing
// is written when change fails.
func (m *FileContextService) mutate(change func(*config.ContextCatalog) error) error {
	catalog, err := m.loadCatalog()
	if err != nil {
		return err
	}
	if err := change(&catalog); err != nil {
		return err
	}
	return m.saveCatalog(catalog)
}

func (m *FileContextService) loadCatalog() (config.ContextCatalog, error) {
	path, err := resolveCatalogPath(m.contextCatalogPath)
	if err != nil {
		return config.ContextCatalog{}, err
	}

	catalog, err := decodeCatalogFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.ContextCatalog{}, nil
	}
	if err != nil {
		return config.ContextCatalog{}, err
	}
	if err := restrictToOwner(path); err != nil {
		return config.ContextCatalog{}, err
	}
	if err := validateCatalog(catalog); err != nil {
		return config.ContextCatalog{}, err
	}
	return catalog, nil
}

func (m *FileContextService) saveCatalog(catalog config.ContextCatalog) error {
	compacted := catalog
	compacted.Contexts = make([]config.Context, len(catalog.Contexts))
	for idx, item := range catalog.Contexts {
		compacted.Contexts[idx] = compactConfigForPersistence(item)
	}
	if err := validateCatalog(compacted); err != nil {
		return err
	}

	path, err := resolveCatalogPath(m.contextCatalogPath)
	if err != nil {
		return err
	}
	encoded, err := encodeCatalog(compacted)
	if err != nil {
		return internalError("failed to encode context catalog", err)
	}
	if err := writeOwnerOnlyFile(path, encoded); err != nil {
		return err
	}
	return restrictToOwner(path)
}

// writeOwnerOnlyFile replaces path through a temporary sibling so readers
// never observe a partial catalog.
func writeOwnerOnlyFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internalError("failed to create context catalog directory", err)
	}

	tempFile, err := os.CreateTemp(dir, ".jelapi-contexts-*")
	if err != nil {
		return internalError("failed to create temporary context catalog file", err)
	}
	tempPath := tempFile.Name()
	fail := func(message string, cause error) error {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return internalError(message, cause)
	}

	if _, err := tempFile.Write(data); err != nil {
		return fail("failed to write context catalog", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		return fail("failed to set context catalog permissions", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to finalize context catalog", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to replace context catalog", err)
	}
	return nil
}

// restrictToOwner tightens the catalog mode to 0600 since it holds tokens.
func restrictToOwner(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return internalError("failed to inspect context catalog permissions", err)
	}
	if info.Mode().Perm() == 0o600 {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return internalError("failed to update context catalog permissions", err)
	}
	return nil
}

func contextIndex(contexts []config.Context, name string) int {
	return slices.IndexFunc(contexts, func(item config.Context) bool {
		return item.Name == name
	})
}

func contextNotFound(name string) error {
	return notFoundError(fmt.Sprintf("context %q not found", name))
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func notFoundError(message string) error {
	return faults.NewTypedError(faults.NotFoundError, message, nil)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
