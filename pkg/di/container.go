// Package di provides dependency injection container
package di

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/mseedkit/pkg/archive"
	"github.com/ssargent/mseedkit/pkg/config"
	"github.com/ssargent/mseedkit/pkg/dedup"
	"github.com/ssargent/mseedkit/pkg/metrics"
	"github.com/ssargent/mseedkit/pkg/mseed"
	"github.com/ssargent/mseedkit/pkg/pool"
	"github.com/ssargent/mseedkit/pkg/steim"
)

// Codec is the payload adapter the engine resegments through
type Codec interface {
	mseed.Decoder
	mseed.Compressor
}

// Container holds all the dependencies for the application
type Container struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	codec    Codec
}

// NewContainer creates a new dependency injection container from cfg,
// logging to w.
func NewContainer(cfg *config.Config, w io.Writer) (*Container, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if w == nil {
		w = os.Stderr
	}
	logger, err := cfg.NewLogger(w)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	return &Container{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		codec:    steim.New(),
	}, nil
}

// GetConfig returns the loaded configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the application logger
func (c *Container) GetLogger() *slog.Logger {
	return c.logger
}

// GetRegistry returns the Prometheus registry the metrics live on
func (c *Container) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetrics returns the application metrics
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetCodec returns the Steim codec
func (c *Container) GetCodec() Codec {
	return c.codec
}

// SetCodec allows overriding the codec (for testing)
func (c *Container) SetCodec(codec Codec) {
	c.codec = codec
}

// RecordOptions returns the options every record is created with
func (c *Container) RecordOptions() []mseed.Option {
	return c.config.RecordOptions(c.logger, c.metrics)
}

// NewPool creates a record pool reporting to the metrics
func (c *Container) NewPool() *pool.Pool {
	return pool.New(pool.Config{
		RecordOptions: c.RecordOptions(),
		Logger:        c.logger,
		Reporter:      c.metrics,
	})
}

// NewDedupIndex creates a duplicate index sized from the configuration
func (c *Container) NewDedupIndex() *dedup.Index {
	return dedup.NewIndex(dedup.Config{Window: c.config.Dedup.Window})
}

// OpenArchive opens the configured archive. dir overrides the configured
// directory when not empty.
func (c *Container) OpenArchive(dir string) (*archive.Archive, error) {
	if dir == "" {
		dir = c.config.Archive.Dir
	}
	return archive.Open(archive.Config{
		Dir:           dir,
		Sync:          c.config.Archive.Sync,
		RecordOptions: c.RecordOptions(),
		Logger:        c.logger,
	})
}

// ResegmentOptions returns the resegmentation options for records drawn
// from alloc.
func (c *Container) ResegmentOptions(alloc mseed.Allocator) mseed.ResegmentOptions {
	enc, _ := c.config.ResegmentEncoding()
	return mseed.ResegmentOptions{
		TargetSize: c.config.Resegment.TargetSize,
		Decoder:    c.codec,
		Compressor: c.codec,
		Encoding:   enc,
		Alloc:      alloc,
		OnComplete: c.metrics.Resegmented,
	}
}
