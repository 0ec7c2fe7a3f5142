package uf2

import (
	"log/slog"
)

// Progress reports how far a write has gone.
type Progress struct {
	// Blocks is the number of blocks read so far, valid or not.
	Blocks int

	// BytesWritten is the number of bytes programmed so far.
	BytesWritten uint32

	// RegionSize is the size of the target region.
	RegionSize uint32

	// Percentage is the share of the region programmed so far (0.0 to 100.0).
	Percentage float64
}

// ProgressCallback is called after every page is programmed.
type ProgressCallback func(Progress)

// Config holds the writer configuration.
type Config struct {
	ProgressCallback ProgressCallback
	Logger           *slog.Logger
}

func defaultConfig() Config {
	return Config{
		Logger: slog.Default(),
	}
}

// Option is a functional option for configuring the Writer.
type Option func(*Config)

// WithProgressCallback sets a callback to track the write progress.
//
// Example:
//
//	w := uf2.NewWriter(dev,
//	    uf2.WithProgressCallback(func(p uf2.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets the logger used by the writer.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
