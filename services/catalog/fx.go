package catalog

import (
	"engagement-controlplane/pkg/config"

	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(func(c *config.Config) (*Catalog, error) {
		return Load(c.CatalogPath)
	}),
)
