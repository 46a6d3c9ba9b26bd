// Package neo4j implements driven.GraphStore over the Bolt protocol.
package neo4j

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Driver defaults.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultMaxPoolSize    = 10
	userAgent             = "graphloom"
)

// driverFactory opens a driver; swapped in tests.
type driverFactory func(target, username, password string, configurers ...func(*config.Config)) (neo4j.DriverWithContext, error)

func openDriver(target, username, password string, configurers ...func(*config.Config)) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(target, neo4j.BasicAuth(username, password, ""), configurers...)
}

// DriverProvider lazily opens and memoizes one driver. The driver is
// reopened when the resolved endpoint or credentials change.
type DriverProvider struct {
	once    sync.Once
	ready   atomic.Bool
	factory driverFactory

	mu          sync.Mutex
	driver      neo4j.DriverWithContext
	key         string
	configurers []func(*config.Config)
}

// NewDriverProvider creates a provider. No connection is made until first use.
func NewDriverProvider() *DriverProvider {
	return &DriverProvider{factory: openDriver}
}

// Initialize prepares the shared driver configuration. Safe to call repeatedly.
func (p *DriverProvider) Initialize() error {
	p.once.Do(func() {
		p.configurers = []func(*config.Config){
			func(c *config.Config) {
				c.UserAgent = userAgent
				c.SocketConnectTimeout = DefaultConnectTimeout
				c.MaxConnectionPoolSize = DefaultMaxPoolSize
			},
		}
		p.ready.Store(true)
		logger.Debug("Graph: driver provider initialized")
	})
	return nil
}

// IsReady reports whether Initialize has run.
func (p *DriverProvider) IsReady() bool {
	return p.ready.Load()
}

// Driver returns the memoized driver for cfg, opening it on first use.
func (p *DriverProvider) Driver(cfg domain.EndpointConfig) (neo4j.DriverWithContext, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}

	key := cfg.BaseURL + "\x00" + cfg.Username + "\x00" + cfg.Password
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.driver != nil && p.key == key {
		return p.driver, nil
	}
	if p.driver != nil {
		logger.Debug("Graph: endpoint changed, reopening driver")
		_ = p.driver.Close(context.Background())
		p.driver = nil
	}

	driver, err := p.factory(cfg.BaseURL, cfg.Username, cfg.Password, p.configurers...)
	if err != nil {
		return nil, err
	}
	p.driver = driver
	p.key = key
	return driver, nil
}

// Close closes the memoized driver, if any.
func (p *DriverProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.driver == nil {
		return nil
	}
	err := p.driver.Close(ctx)
	p.driver = nil
	p.key = ""
	return err
}
