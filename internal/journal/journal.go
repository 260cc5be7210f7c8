// Package journal holds the application services that sit between the command
// line and storage: rule checklist management and the trade journal.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mentor-desk/internal/logging"
	"mentor-desk/internal/models"
	"mentor-desk/internal/rules"
	"mentor-desk/internal/security"
	"mentor-desk/internal/store"
)

// Option configures the journal services.
type Option func(*options)

type options struct {
	feed            store.ChangeFeed
	access          *security.AccessController
	validator       *security.TradeValidator
	matcher         rules.Matcher
	logger          zerolog.Logger
	now             func() time.Time
	newID           func() string
	deriveStatus    bool
	defaultSource   models.TradeSource
	defaultMentorID string
}

func defaultOptions() options {
	return options{
		feed:          store.NopFeed{},
		validator:     security.NewTradeValidator(false),
		matcher:       rules.NewTokenOverlapMatcher(rules.DefaultMinTokenLength),
		logger:        zerolog.Nop(),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		deriveStatus:  true,
		defaultSource: models.SourceDemo,
	}
}

// log returns the request logger carried by ctx, falling back to the
// configured one.
func (o options) log(ctx context.Context) zerolog.Logger {
	return logging.LoggerFrom(ctx, o.logger)
}

// rejected records a validation failure in the audit log and returns err.
func (o options) rejected(ctx context.Context, err error) error {
	o.access.RecordRejection(ctx, err)
	return err
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFeed publishes every persisted change to feed.
func WithFeed(feed store.ChangeFeed) Option {
	return func(o *options) {
		if feed != nil {
			o.feed = feed
		}
	}
}

// WithAccessController enforces read-only mode on mutations.
func WithAccessController(ac *security.AccessController) Option {
	return func(o *options) {
		o.access = ac
	}
}

// WithValidator replaces the default lenient validator.
func WithValidator(v *security.TradeValidator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithMatcher sets the rule matcher used for evaluation and validation.
func WithMatcher(m rules.Matcher) Option {
	return func(o *options) {
		if m != nil {
			o.matcher = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator sets the id source for new rules and trades.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// WithStatusDerivation controls whether a trade's status is recomputed from
// the sign of its pnl. When disabled an explicit status wins and a mismatch
// is only logged.
func WithStatusDerivation(derive bool) Option {
	return func(o *options) {
		o.deriveStatus = derive
	}
}

// WithDefaultSource sets the trade source used when a trade does not name one.
func WithDefaultSource(src models.TradeSource) Option {
	return func(o *options) {
		if src != "" {
			o.defaultSource = src
		}
	}
}

// WithDefaultMentorID sets the mentor recorded on reviews that do not name one.
func WithDefaultMentorID(id string) Option {
	return func(o *options) {
		o.defaultMentorID = id
	}
}

// Journal bundles the rule and trade services over one store.
type Journal struct {
	Rules  *RuleService
	Trades *TradeService
}

// New creates both services sharing the same options.
func New(ds store.DataStore, opts ...Option) *Journal {
	ruleSvc := NewRuleService(ds, opts...)
	return &Journal{
		Rules:  ruleSvc,
		Trades: NewTradeService(ds, ruleSvc, opts...),
	}
}

func (o *options) publish(topic string, kind store.ChangeKind, id string) {
	o.feed.Publish(store.Change{Topic: topic, Kind: kind, ID: id, At: o.now()})
}
