// Package chromaopts provides options for Chroma client configuration.
package chromaopts

import (
	"fmt"
	"time"

	"github.com/itissonu/genaiquery/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Chroma client configuration.
type Options struct {
	// URL is the Chroma server base URL.
	URL string `json:"url" mapstructure:"url"`

	// Collection is the collection name to use.
	Collection string `json:"collection" mapstructure:"collection"`

	// Timeout for HTTP requests.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:        "http://localhost:8000",
		Collection: "project_docs",
		Timeout:    30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, options.Join(prefixes...)+"chroma.url", o.URL, "Chroma server base URL.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"chroma.collection", o.Collection, "Chroma collection name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"chroma.timeout", o.Timeout, "HTTP request timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URL == "" {
		errs = append(errs, fmt.Errorf("chroma url is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("chroma collection is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("chroma timeout must be positive"))
	}
	return errs
}
