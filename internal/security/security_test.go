package security

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/store"
	"mentor-desk/internal/stream"
)

func TestValidatePair(t *testing.T) {
	v := NewTradeValidator(false)

	for _, ok := range []string{"EURUSD", "eurusd", " XAUUSD ", "BTC/USDT", "US30", "NAS100"} {
		assert.NoError(t, v.ValidatePair(ok), ok)
	}
	for _, bad := range []string{"", "E", "EUR-USD", "EURUSD;DROP", "EUR/", strings.Repeat("A", 11)} {
		err := v.ValidatePair(bad)
		assert.Error(t, err, bad)
		assert.True(t, apperrors.IsValidation(err), bad)
	}
	assert.Equal(t, "GBPJPY", NormalizePair(" gbpjpy "))
}

func TestValidateNumbers(t *testing.T) {
	v := NewTradeValidator(false)

	assert.NoError(t, v.ValidatePrice("entryPrice", 1.0852))
	assert.Error(t, v.ValidatePrice("entryPrice", 0))
	assert.Error(t, v.ValidatePrice("entryPrice", -1))
	assert.Error(t, v.ValidatePrice("entryPrice", math.NaN()))
	assert.Error(t, v.ValidatePrice("entryPrice", MaxPrice*2))

	assert.NoError(t, v.ValidateOptionalPrice("stopLoss", 0))
	assert.Error(t, v.ValidateOptionalPrice("stopLoss", -2))

	assert.NoError(t, v.ValidateAmount("riskAmount", 0))
	assert.Error(t, v.ValidateAmount("riskAmount", -5))

	assert.NoError(t, v.ValidatePnL(-40))
	assert.Error(t, v.ValidatePnL(math.Inf(1)))

	assert.NoError(t, v.ValidateConfidence(0))
	assert.NoError(t, v.ValidateConfidence(1))
	assert.NoError(t, v.ValidateConfidence(10))
	assert.Error(t, v.ValidateConfidence(11))
	assert.Error(t, v.ValidateConfidence(-1))
}

func TestValidateText(t *testing.T) {
	lenient := NewTradeValidator(false)
	strict := NewTradeValidator(true)

	assert.Error(t, lenient.ValidateRuleText("   "))
	assert.NoError(t, lenient.ValidateRuleText("Liquidity sweep below the Asian low"))
	assert.Error(t, lenient.ValidateRuleText(strings.Repeat("x", MaxRuleTextLength+1)))
	assert.NoError(t, lenient.ValidateText("notes", strings.Repeat("é", MaxNotesLength), MaxNotesLength))

	injected := "great entry'; DROP TABLE trades; --"
	assert.NoError(t, lenient.ValidateText("notes", injected, MaxNotesLength))
	assert.Error(t, strict.ValidateText("notes", injected, MaxNotesLength))
	assert.NoError(t, strict.ValidateText("notes", "Entered after the sweep; risk was 1%", MaxNotesLength))

	assert.Error(t, lenient.ValidateLabels("tags", make([]string, MaxTagCount+1)))
	assert.NoError(t, lenient.ValidateLabels("tags", []string{"london", "a-plus"}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "line one\nline two", SanitizeText("line one\x00\nline two\x07"))
	assert.Equal(t, []string{"calm", "Patient"}, SanitizeLabels([]string{" calm ", "", "CALM", "Patient"}))
	assert.NotNil(t, SanitizeLabels(nil))
}

func TestAccessController(t *testing.T) {
	ctx := context.Background()
	ac := NewAccessController(true, nil)

	err := ac.CheckPermission(ctx, OpAddRule)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReadOnlyMode)
	assert.NoError(t, ac.CheckPermission(ctx, OpRead))

	ac.SetReadOnly(false)
	assert.False(t, ac.IsReadOnly())
	for _, op := range WriteOperations() {
		assert.NoError(t, ac.CheckPermission(ctx, op))
		assert.NotEqual(t, string(op), OperationDescription(op))
	}

	var nilController *AccessController
	assert.NoError(t, nilController.CheckPermission(ctx, OpDeleteTrade))
}

func readAuditEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAuditLoggerRecordsFeedChanges(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.LogDir = t.TempDir()
	cfg.Compress = false
	audit, err := NewAuditLogger(cfg)
	require.NoError(t, err)
	audit.SetMentorID("mentor-7")

	hub := stream.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.Start(ctx))
	audit.Attach(hub)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	hub.Publish(store.Change{Topic: store.TopicRules, Kind: store.ChangeCreated, ID: "r1", At: at})
	hub.Publish(store.Change{Topic: store.TopicRules, Kind: store.ChangeReordered, At: at})
	hub.Publish(store.Change{Topic: store.TopicTrades, Kind: store.ChangeDeleted, ID: "t9", At: at})
	hub.Stop()

	ac := NewAccessController(true, audit)
	assert.Error(t, ac.CheckPermission(ctx, OpLogTrade))
	require.NoError(t, audit.Close())

	events := readAuditEvents(t, audit.Path())
	require.Len(t, events, 4)
	assert.Equal(t, AuditRuleCreated, events[0].EventType)
	assert.Equal(t, "r1", events[0].EntityID)
	assert.True(t, events[0].Timestamp.Equal(at))
	assert.Equal(t, AuditRuleReordered, events[1].EventType)
	assert.Equal(t, AuditTradeDeleted, events[2].EventType)
	assert.Equal(t, AuditReadOnlyViolation, events[3].EventType)
	assert.Equal(t, string(OpLogTrade), events[3].Action)
	for _, e := range events {
		assert.Equal(t, "mentor-7", e.MentorID)
		assert.Equal(t, audit.SessionID(), e.SessionID)
	}
}

func TestRecordRejectionLogsFailedAuditWrite(t *testing.T) {
	ctx := context.Background()
	audit, err := NewAuditLogger(AuditConfig{LogDir: t.TempDir(), MaxSize: 1})
	require.NoError(t, err)
	defer audit.Close()

	var logs bytes.Buffer
	ac := NewAccessController(false, audit)
	ac.SetLogger(zerolog.New(&logs))

	ac.RecordRejection(ctx, apperrors.NewValidationError("notes", "short", "too long"))
	assert.Empty(t, logs.String())

	// An event larger than the rotation size cannot be written.
	ac.RecordRejection(ctx, apperrors.NewValidationError("notes", "short", strings.Repeat("x", 2<<20)))
	assert.Contains(t, logs.String(), "Audit write failed")
	assert.Contains(t, logs.String(), `"field":"notes"`)

	events := readAuditEvents(t, audit.Path())
	assert.Len(t, events, 1)
}
