// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on.
	Addr string `json:"addr" mapstructure:"addr"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// ShutdownTimeout is how long to wait for in-flight requests on shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "HTTP server listen address")
	fs.DurationVar(&o.ReadTimeout, "http.read-timeout", o.ReadTimeout, "HTTP server read timeout")
	fs.DurationVar(&o.WriteTimeout, "http.write-timeout", o.WriteTimeout, "HTTP server write timeout")
	fs.DurationVar(&o.IdleTimeout, "http.idle-timeout", o.IdleTimeout, "HTTP server idle timeout")
	fs.DurationVar(&o.ShutdownTimeout, "http.shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
}

// Validate validates the HTTP options.
func (o *Options) Validate() error {
	if o.Addr == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	if o.ReadTimeout <= 0 {
		return fmt.Errorf("http.read-timeout must be positive")
	}
	if o.WriteTimeout <= 0 {
		return fmt.Errorf("http.write-timeout must be positive")
	}
	return nil
}
