package ports

import (
	"context"

	"github.com/tjfontaine/agentgate/internal/config"
)

// ConfigProvider loads and watches configuration.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}
