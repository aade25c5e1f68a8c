// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/loomhq/loom/pkg/registry"
)

// NewRegistry builds the block catalog: builtin blocks first, then
// plugin blocks from pluginsPath so plugins can shadow builtins. An
// empty pluginsPath skips plugin loading.
func NewRegistry(logger *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultBlocks()

	if pluginsPath == "" {
		return reg, nil
	}

	plugins, err := reg.LoadBlockPlugins(pluginsPath)
	if err != nil {
		return nil, err
	}

	for _, plugin := range plugins {
		reg.RegisterBlock(plugin)
	}

	return reg, nil
}
