// Package registry maintains the catalog of discoverable block types.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"strings"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// NotFoundError reports a lookup for an unregistered block type. It
// carries every registered type id so callers can tell a typo from a
// missing plugin.
type NotFoundError struct {
	Type      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("block type '%s' not registered (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

// Registry is the process-wide block catalog. It is populated by an
// explicit registration pass at startup and read-only afterwards, so it
// is safe to share without locking.
type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.BlockFactory
	order     []string
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.BlockFactory),
	}
}

// RegisterBlock adds a factory to the catalog. A factory registered later
// under an already-known id shadows the earlier one; registration order
// (stable, experimental, user plugins) makes the shadowing deterministic.
func (r *Registry) RegisterBlock(factory protocol.BlockFactory) {
	id := factory.ID()
	if _, exists := r.factories[id]; exists {
		r.logger.Warn("Block type re-registered, shadowing earlier registration", "type", id)
	} else {
		r.order = append(r.order, id)
	}

	r.factories[id] = factory
}

// Resolve returns the factory for a block type id.
func (r *Registry) Resolve(blockType string) (protocol.BlockFactory, error) {
	factory, ok := r.factories[blockType]
	if !ok {
		return nil, &NotFoundError{Type: blockType, Available: r.AvailableTypes()}
	}

	return factory, nil
}

// Create resolves a block type and builds a configured instance.
func (r *Registry) Create(blockType string, config map[string]any) (protocol.Block, error) {
	factory, err := r.Resolve(blockType)
	if err != nil {
		return nil, err
	}

	return factory.Create(config)
}

// AvailableTypes returns all registered type ids, sorted.
func (r *Registry) AvailableTypes() []string {
	types := make([]string, 0, len(r.factories))
	for blockType := range r.factories {
		types = append(types, blockType)
	}

	sort.Strings(types)

	return types
}

// Descriptors returns the catalog in registration order, for the editor
// and for validation.
func (r *Registry) Descriptors() []models.BlockDescriptor {
	descriptors := make([]models.BlockDescriptor, 0, len(r.factories))

	for _, id := range r.order {
		factory := r.factories[id]
		descriptors = append(descriptors, describe(factory))
	}

	return descriptors
}

// HealthCheck reports whether the catalog holds at least one block type.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.factories) == 0 {
		return "no block types registered", false
	}

	return fmt.Sprintf("%d block types registered", len(r.factories)), true
}

func describe(factory protocol.BlockFactory) models.BlockDescriptor {
	inputs := factory.Inputs().Keys()
	if factory.Inputs().IsWildcard() {
		inputs = []string{"*"}
	}

	return models.BlockDescriptor{
		Type:        factory.ID(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Inputs:      inputs,
		Outputs:     factory.Outputs(),
		Schema:      factory.Schema(),
	}
}

// LoadBlockPlugins loads user-supplied block factories from .so files
// under pluginsPath/blocks. User blocks register after the built-ins and
// may shadow them by id; that is the supported extension point.
func (r *Registry) LoadBlockPlugins(pluginsPath string) ([]protocol.BlockFactory, error) {
	return loadPlugin[protocol.BlockFactory](r.logger, pluginsPath, "Block")
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s does not export symbol %s: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s symbol %s does not satisfy the block factory contract", p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded block plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
