package storage

import (
	"context"
	"fmt"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/config"
)

// Open connects to the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (pkg.PostStore, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return NewMongoClient(ctx, cfg.URL, cfg.DatabaseName(), cfg.ConnectTimeout)
	case config.DriverBolt:
		return NewBoltStore(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
