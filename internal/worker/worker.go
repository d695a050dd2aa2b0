// Package worker runs the background loops of the server: warming the
// content cache and evicting idle reading sessions.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/logger"
)

// maxConcurrentWarm bounds parallel domain manifest fetches.
const maxConcurrentWarm = 4

// ManifestWarmer refreshes cached manifests from upstream.
type ManifestWarmer interface {
	WarmRootManifest(ctx context.Context) (*content.RootManifest, error)
	WarmDomainManifest(ctx context.Context, domain string) error
}

// Prefetcher periodically refreshes the root manifest and every domain manifest.
type Prefetcher struct {
	warmer   ManifestWarmer
	interval time.Duration
	log      logger.Logger
}

// NewPrefetcher creates a new Prefetcher.
func NewPrefetcher(warmer ManifestWarmer, interval time.Duration, log logger.Logger) *Prefetcher {
	return &Prefetcher{warmer: warmer, interval: interval, log: log}
}

// Start warms the cache immediately and then every interval. It blocks
// until ctx is cancelled.
func (p *Prefetcher) Start(ctx context.Context) {
	p.log.Info("prefetcher started", logger.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("prefetcher stopped")
			return
		default:
		}

		start := time.Now()
		n, err := p.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.log.Error("prefetch failed", logger.Int("domains", n), logger.Error(err))
		} else if err == nil {
			p.log.Info("prefetch done", logger.Int("domains", n), logger.Duration("elapsed", time.Since(start)))
		}
		sleep(ctx, p.interval)
	}
}

// RunOnce refreshes the root manifest, then every domain it lists in
// parallel. It returns the number of domains and the first error; one
// failing domain does not stop the others.
func (p *Prefetcher) RunOnce(ctx context.Context) (int, error) {
	root, err := p.warmer.WarmRootManifest(ctx)
	if err != nil {
		return 0, fmt.Errorf("warm root manifest: %w", err)
	}
	domains := root.Domains()

	var g errgroup.Group
	g.SetLimit(maxConcurrentWarm)
	for _, d := range domains {
		g.Go(func() error {
			if err := p.warmer.WarmDomainManifest(ctx, d); err != nil {
				p.log.Warn("warm domain manifest failed", logger.String("domain", d), logger.Error(err))
				return fmt.Errorf("warm domain %s: %w", d, err)
			}
			return nil
		})
	}
	return len(domains), g.Wait()
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
