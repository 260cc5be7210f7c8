package security

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"mentor-desk/internal/store"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Rule events
	AuditRuleCreated   AuditEventType = "RULE_CREATED"
	AuditRuleUpdated   AuditEventType = "RULE_UPDATED"
	AuditRuleDeleted   AuditEventType = "RULE_DELETED"
	AuditRuleReordered AuditEventType = "RULE_REORDERED"

	// Trade events
	AuditTradeCreated AuditEventType = "TRADE_CREATED"
	AuditTradeUpdated AuditEventType = "TRADE_UPDATED"
	AuditTradeDeleted AuditEventType = "TRADE_DELETED"

	// Security events
	AuditReadOnlyViolation AuditEventType = "READ_ONLY_VIOLATION"
	AuditInputValidation   AuditEventType = "INPUT_VALIDATION"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	MentorID  string                 `json:"mentor_id,omitempty"`
	Topic     string                 `json:"topic,omitempty"`
	EntityID  string                 `json:"entity_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// AuditLogger handles audit logging for journal mutations.
type AuditLogger struct {
	writer    *lumberjack.Logger
	mu        sync.Mutex
	sessionID string
	mentorID  string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "mentor-desk", "audit"),
		MaxSize:    20,
		MaxBackups: 10,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: uuid.NewString(),
	}, nil
}

// Path returns the active audit log file.
func (al *AuditLogger) Path() string {
	return al.writer.Filename
}

// SessionID returns the id stamped on every event of this process.
func (al *AuditLogger) SessionID() string {
	return al.sessionID
}

// SetMentorID sets the mentor ID for audit events.
func (al *AuditLogger) SetMentorID(mentorID string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.mentorID = mentorID
}

// Log logs an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.SessionID = al.sessionID
	if event.MentorID == "" {
		event.MentorID = al.mentorID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}

	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}

// LogChange records a persisted mutation.
func (al *AuditLogger) LogChange(ctx context.Context, change store.Change) error {
	return al.Log(ctx, AuditEvent{
		Timestamp: change.At.UTC(),
		EventType: changeEventType(change),
		Topic:     change.Topic,
		EntityID:  change.ID,
		Action:    string(change.Kind),
		Success:   true,
	})
}

// Attach subscribes the logger to every topic of a change feed.
func (al *AuditLogger) Attach(feed store.ChangeFeed) store.Subscription {
	return feed.Subscribe(store.TopicAll, func(change store.Change) {
		_ = al.LogChange(context.Background(), change)
	})
}

// LogReadOnlyViolation logs an attempt to perform a write operation in read-only mode.
func (al *AuditLogger) LogReadOnlyViolation(ctx context.Context, operation string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditReadOnlyViolation,
		Action:    operation,
		Success:   false,
		ErrorMsg:  "operation blocked: read-only mode enabled",
	})
}

// LogInputValidation logs an input validation failure.
func (al *AuditLogger) LogInputValidation(ctx context.Context, field, value, reason string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditInputValidation,
		Success:   false,
		ErrorMsg:  reason,
		Details: map[string]interface{}{
			"field": field,
			"value": truncate(value, 50),
		},
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}

func changeEventType(change store.Change) AuditEventType {
	switch change.Topic {
	case store.TopicRules:
		switch change.Kind {
		case store.ChangeCreated:
			return AuditRuleCreated
		case store.ChangeDeleted:
			return AuditRuleDeleted
		case store.ChangeReordered:
			return AuditRuleReordered
		default:
			return AuditRuleUpdated
		}
	case store.TopicTrades:
		switch change.Kind {
		case store.ChangeCreated:
			return AuditTradeCreated
		case store.ChangeDeleted:
			return AuditTradeDeleted
		default:
			return AuditTradeUpdated
		}
	}
	return AuditEventType(strings.ToUpper(change.Topic + "_" + string(change.Kind)))
}
