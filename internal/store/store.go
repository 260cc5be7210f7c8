// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"mentor-desk/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Rules
	ListRules(ctx context.Context, filter RuleFilter) ([]models.Rule, error)
	GetRule(ctx context.Context, id string) (*models.Rule, error)
	SaveRule(ctx context.Context, rule *models.Rule) error
	SaveRules(ctx context.Context, rules []models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	ReplaceRules(ctx context.Context, deleteIDs []string, rules []models.Rule) error

	// Trades
	LogTrade(ctx context.Context, trade *models.TradeEntry) error
	UpdateTrade(ctx context.Context, trade *models.TradeEntry) error
	GetTrade(ctx context.Context, id string) (*models.TradeEntry, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeEntry, error)
	DeleteTrade(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// RuleFilter represents filters for querying rules.
type RuleFilter struct {
	Direction    models.Direction
	RequiredOnly bool
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Pair      string
	Type      models.Direction
	Status    models.TradeStatus
	Source    models.TradeSource
	Strategy  string
	MentorID  string
	StartDate time.Time
	EndDate   time.Time
	// Search matches pair, notes, strategy and tags, case-insensitively.
	Search string
	Limit  int
}

// ChangeKind describes what happened to an entity.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeReordered ChangeKind = "reordered"
)

// Change topics. TopicAll subscribes to every topic.
const (
	TopicRules  = "rules"
	TopicTrades = "trades"
	TopicAll    = "*"
)

// Change is a notification that persisted data was modified.
type Change struct {
	Topic string     `json:"topic"`
	Kind  ChangeKind `json:"kind"`
	ID    string     `json:"id,omitempty"`
	At    time.Time  `json:"at"`
}

// ChangeHandler receives changes for a subscribed topic.
type ChangeHandler func(Change)

// Subscription identifies a registered change handler.
type Subscription interface {
	Topic() string
	Unsubscribe()
}

// ChangeFeed lets consumers observe modifications without polling.
type ChangeFeed interface {
	Publish(change Change)
	Subscribe(topic string, handler ChangeHandler) Subscription
}

// NopFeed discards every change.
type NopFeed struct{}

func (NopFeed) Publish(Change) {}

func (NopFeed) Subscribe(topic string, _ ChangeHandler) Subscription {
	return nopSubscription(topic)
}

type nopSubscription string

func (s nopSubscription) Topic() string { return string(s) }
func (nopSubscription) Unsubscribe()    {}
