package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/qdrant"
	"github.com/papercomputeco/recall/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	// TargetURL is the provider address: host:port for qdrant, a database
	// file path for sqlite-vec.
	TargetURL      string
	CollectionName string
	Dimensions     uint
	Logger         *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "qdrant":
		host, port, err := splitHostPort(o.TargetURL)
		if err != nil {
			return nil, fmt.Errorf("parsing qdrant target %q: %w", o.TargetURL, err)
		}
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:           host,
			Port:           port,
			CollectionName: o.CollectionName,
			Dimensions:     uint64(o.Dimensions),
		}, o.Logger)
	case "sqlite-vec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string) (string, int, error) {
	// Accept both bare host:port and scheme://host:port.
	u, err := url.Parse(target)
	if err == nil && u.Host != "" {
		target = u.Host
	}

	host := target
	port := 6334
	if h, p, err := splitLast(target); err == nil {
		host = h
		port = p
	}
	if host == "" {
		return "", 0, fmt.Errorf("missing host")
	}
	return host, port, nil
}

func splitLast(target string) (string, int, error) {
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == ':' {
			p, err := strconv.Atoi(target[i+1:])
			if err != nil {
				return "", 0, err
			}
			return target[:i], p, nil
		}
	}
	return "", 0, fmt.Errorf("no port in target")
}
