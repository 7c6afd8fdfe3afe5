package pipeline

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/hanpama/querysign/internal/discovery"
	"github.com/hanpama/querysign/internal/eventbus"
	"github.com/hanpama/querysign/internal/logging"
)

// Options configures a Pipeline.
//
// Defaults:
// - Workers:        runtime.NumCPU()
// - Locator:        discovery.NewLocator()
// - Logger:         discards everything
// - Bus:            nil (no events)
// - OperationKinds: false
//
// All options are safe to leave zero-valued to use defaults.
type Options struct {
	Workers int
	Locator *discovery.Locator
	Logger  logrus.FieldLogger
	Bus     *eventbus.Bus

	// OperationKinds fills Entry.Kind from the query text when the
	// descriptor does not carry one.
	OperationKinds bool
}

// Option mutates Options
type Option func(*Options)

func defaultOptions() Options {
	return Options{Workers: runtime.NumCPU()}
}

func WithWorkers(n int) Option                { return func(o *Options) { o.Workers = n } }
func WithLocator(l *discovery.Locator) Option { return func(o *Options) { o.Locator = l } }
func WithLogger(l logrus.FieldLogger) Option  { return func(o *Options) { o.Logger = l } }
func WithBus(b *eventbus.Bus) Option          { return func(o *Options) { o.Bus = b } }
func WithOperationKinds(enable bool) Option   { return func(o *Options) { o.OperationKinds = enable } }

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Locator == nil {
		logger := o.Logger
		o.Locator = discovery.NewLocator(discovery.WithSkipHook(func(path string, err error) {
			logger.WithField("path", path).WithError(err).Debug("skipping unreadable entry")
		}))
	}
}
