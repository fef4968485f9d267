package orchestrator

import (
	"time"

	"github.com/ShayCichocki/krishi/internal/conflict"
	"github.com/ShayCichocki/krishi/internal/translate"
	"github.com/ShayCichocki/krishi/internal/worker"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry holds the workers queries are dispatched to.
	Registry *worker.Registry
	// Builder assembles shared context and records delivered turns.
	Builder ContextBuilder
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// These are only used during construction.
type orchestratorOptions struct {
	config      Config
	translator  translate.Translator
	classifier  QueryClassifier
	resolver    *conflict.Resolver
	deliverer   Deliverer
	logger      *DebugLogger
	eventBuffer int
	now         func() time.Time
}

// WithConfig replaces the default Config. Zero fields take defaults.
func WithConfig(c Config) Option {
	return func(o *orchestratorOptions) { o.config = c }
}

// WithTranslator sets the translator used for incoming queries and
// outgoing responses. Without one every query is treated as English.
func WithTranslator(t translate.Translator) Option {
	return func(o *orchestratorOptions) { o.translator = t }
}

// WithClassifier sets the intent classifier.
func WithClassifier(c QueryClassifier) Option {
	return func(o *orchestratorOptions) { o.classifier = c }
}

// WithResolver sets the conflict resolver.
func WithResolver(r *conflict.Resolver) Option {
	return func(o *orchestratorOptions) { o.resolver = r }
}

// WithDeliverer sets where finished responses are sent.
func WithDeliverer(d Deliverer) Option {
	return func(o *orchestratorOptions) { o.deliverer = d }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEvents enables the event stream with the given buffer size.
func WithEvents(bufferSize int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = bufferSize }
}

// WithClock sets the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}
