// Package bufferutils is the buffer utility package
package bufferutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/buffer/inmemory"
	"github.com/papercomputeco/recall/pkg/buffer/redis"
)

type NewBufferDriverOpts struct {
	ProviderType string
	// TargetURL is the provider address. Ignored by the inmemory provider.
	TargetURL string
	Logger    *slog.Logger
}

func NewBufferDriver(ctx context.Context, o *NewBufferDriverOpts) (buffer.Driver, error) {
	switch o.ProviderType {
	case "redis":
		return redis.NewDriver(ctx, redis.Config{
			Addr: o.TargetURL,
		}, o.Logger)
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported buffer provider: %s", o.ProviderType)
	}
}
