package provider

import (
	"fmt"

	"github.com/fxnlabs/gpumem/internal/allocator"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider is the session-level owner of the allocator family. It constructs
// one device allocator per configured ordinal plus an optional pinned host
// allocator at initialization, registers transfer handlers for every
// (device, host) pair, and tears everything down in order on Close.
type Provider struct {
	id       string
	log      *zap.Logger
	plat     platform.Platform
	registry *transfer.Registry

	device map[int]allocator.Allocator
	pools  []*allocator.PooledAllocator
	pinned *allocator.PinnedAllocator
}

// New builds a provider from configuration. Allocator instances are created
// once per device here and live for the session's lifetime.
func New(cfg *config.Config, plat platform.Platform, log *zap.Logger) (*Provider, error) {
	p := &Provider{
		id:       uuid.NewString(),
		log:      log.Named("provider"),
		plat:     plat,
		registry: transfer.NewRegistry(),
		device:   make(map[int]allocator.Allocator),
	}

	host := transfer.Descriptor{Kind: transfer.KindCPU, Mem: transfer.MemDefault}
	for _, ordinal := range cfg.Provider.Devices {
		switch cfg.Provider.Allocator {
		case "pooled":
			pool := allocator.NewPooledAllocator(plat, ordinal, log)
			p.device[ordinal] = pool
			p.pools = append(p.pools, pool)
		case "raw":
			p.device[ordinal] = allocator.NewDeviceAllocator(plat, ordinal, log)
		default:
			return nil, fmt.Errorf("unknown allocator kind %q", cfg.Provider.Allocator)
		}

		handler := transfer.NewStreamHandler()
		p.registry.Register(transfer.Descriptor{Kind: transfer.KindGPU, Mem: transfer.MemDefault, Ordinal: ordinal}, host, handler)
		p.registry.Register(transfer.Descriptor{Kind: transfer.KindGPU, Mem: transfer.MemHostPinned, Ordinal: ordinal}, host, handler)
	}

	if cfg.Provider.PinnedStaging {
		p.pinned = allocator.NewPinnedAllocator(plat, cfg.Provider.Devices[0])
	}

	p.log.Info("provider initialized",
		zap.String("session", p.id),
		zap.Ints("devices", cfg.Provider.Devices),
		zap.String("allocator", cfg.Provider.Allocator),
		zap.Bool("pinnedStaging", cfg.Provider.PinnedStaging))
	return p, nil
}

// ID returns the provider's session identity.
func (p *Provider) ID() string {
	return p.id
}

// Allocator returns the device allocator for the given ordinal.
func (p *Provider) Allocator(ordinal int) (allocator.Allocator, error) {
	a, ok := p.device[ordinal]
	if !ok {
		return nil, fmt.Errorf("no allocator for device %d", ordinal)
	}
	return a, nil
}

// Pinned returns the pinned host allocator, or nil if staging is disabled.
func (p *Provider) Pinned() allocator.Allocator {
	if p.pinned == nil {
		return nil
	}
	return p.pinned
}

// Resolver returns the transfer-handler resolver fences are minted against.
func (p *Provider) Resolver() transfer.Resolver {
	return p.registry
}

// Close tears the session down. Device pools are drained first so that all
// outstanding device memory is released before the host-side staging
// allocator goes away.
func (p *Provider) Close() error {
	for _, pool := range p.pools {
		if err := pool.Close(); err != nil {
			return err
		}
	}
	p.log.Info("provider closed", zap.String("session", p.id))
	return nil
}
