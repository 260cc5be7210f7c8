// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry RetryConfig
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, retry: DefaultRetryConfig()}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Checklist rules, one row per criterion
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		direction TEXT NOT NULL,
		required INTEGER NOT NULL DEFAULT 1,
		order_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Journaled trades
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL DEFAULT 0,
		take_profit REAL NOT NULL DEFAULT 0,
		exit_price REAL,
		status TEXT NOT NULL DEFAULT 'pending',
		pnl REAL,
		date DATETIME NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		emotions TEXT NOT NULL DEFAULT '[]',
		strategy TEXT NOT NULL DEFAULT '',
		time_frame TEXT NOT NULL DEFAULT '',
		market_condition TEXT NOT NULL DEFAULT '',
		confidence_level INTEGER NOT NULL DEFAULT 0,
		risk_amount REAL NOT NULL DEFAULT 0,
		position_size REAL NOT NULL DEFAULT 0,
		trade_duration TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		trade_source TEXT NOT NULL DEFAULT 'demo',
		validation_result TEXT NOT NULL DEFAULT 'none',
		admin_notes TEXT NOT NULL DEFAULT '',
		admin_review_status TEXT NOT NULL DEFAULT 'pending',
		review_timestamp DATETIME,
		mentor_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rules_direction ON rules(direction, order_number);
	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
	CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades(pair);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_mentor ON trades(mentor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Rules Methods
// ============================================================================

const ruleColumns = "id, text, direction, required, order_number, created_at, updated_at"

// ruleRow is the storage shape of a rule.
type ruleRow struct {
	ID          string
	Text        string
	Direction   string
	Required    int
	OrderNumber int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ruleToRow(r models.Rule) ruleRow {
	required := 0
	if r.Required {
		required = 1
	}
	return ruleRow{
		ID:          r.ID,
		Text:        r.Text,
		Direction:   string(r.Direction),
		Required:    required,
		OrderNumber: r.OrderNumber,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func rowToRule(row ruleRow) models.Rule {
	return models.Rule{
		ID:          row.ID,
		Text:        row.Text,
		Direction:   models.Direction(row.Direction),
		Required:    row.Required == 1,
		OrderNumber: row.OrderNumber,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (r *ruleRow) scanFrom(sc interface{ Scan(...interface{}) error }) error {
	return sc.Scan(&r.ID, &r.Text, &r.Direction, &r.Required, &r.OrderNumber, &r.CreatedAt, &r.UpdatedAt)
}

// ListRules retrieves rules in insertion order.
func (s *SQLiteStore) ListRules(ctx context.Context, filter RuleFilter) ([]models.Rule, error) {
	query := "SELECT " + ruleColumns + " FROM rules WHERE 1=1"
	args := []interface{}{}

	if filter.Direction != "" {
		query += " AND direction = ?"
		args = append(args, string(filter.Direction))
	}
	if filter.RequiredOnly {
		query += " AND required = 1"
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		var row ruleRow
		if err := row.scanFrom(rows); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rowToRule(row))
	}

	return rules, rows.Err()
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	var row ruleRow
	err := row.scanFrom(s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("rule", id, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	rule := rowToRule(row)
	return &rule, nil
}

const upsertRule = `
	INSERT INTO rules (id, text, direction, required, order_number, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		direction = excluded.direction,
		required = excluded.required,
		order_number = excluded.order_number,
		updated_at = excluded.updated_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func saveRule(ctx context.Context, ex execer, rule models.Rule) error {
	row := ruleToRow(rule)
	_, err := ex.ExecContext(ctx, upsertRule, row.ID, row.Text, row.Direction, row.Required, row.OrderNumber, row.CreatedAt, row.UpdatedAt)
	return err
}

// SaveRule inserts or updates a rule, keeping its original position.
func (s *SQLiteStore) SaveRule(ctx context.Context, rule *models.Rule) error {
	err := withRetry(ctx, s.retry, func() error {
		return saveRule(ctx, s.db, *rule)
	})
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// SaveRules saves a batch of rules in one transaction.
func (s *SQLiteStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	return withRetry(ctx, s.retry, func() error {
		return s.saveRules(ctx, rules)
	})
}

func (s *SQLiteStore) saveRules(ctx context.Context, rules []models.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rules {
		if err := saveRule(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to save rule %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

// exec runs a single write statement, retrying while the database is locked.
func (s *SQLiteStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := withRetry(ctx, s.retry, func() error {
		var err error
		result, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// DeleteRule removes a rule by ID.
// ReplaceRules deletes the rules with the given ids and saves rules in one
// transaction. Nothing is applied when any statement fails.
func (s *SQLiteStore) ReplaceRules(ctx context.Context, deleteIDs []string, rules []models.Rule) error {
	return withRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, id := range deleteIDs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to delete rule %s: %w", id, err)
			}
		}
		for _, r := range rules {
			if err := saveRule(ctx, tx, r); err != nil {
				return fmt.Errorf("failed to save rule %s: %w", r.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit rules: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id string) error {
	result, err := s.exec(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("rule", id, "")
	}
	return nil
}

// ============================================================================
// Trades Methods
// ============================================================================

const tradeColumns = `id, pair, type, entry_price, stop_loss, take_profit, exit_price, status, pnl,
	date, notes, emotions, strategy, time_frame, market_condition, confidence_level,
	risk_amount, position_size, trade_duration, tags, trade_source, validation_result,
	admin_notes, admin_review_status, review_timestamp, mentor_id, session_id`

// tradeRow is the storage shape of a trade. List fields are JSON text.
type tradeRow struct {
	ID                string
	Pair              string
	Type              string
	EntryPrice        float64
	StopLoss          float64
	TakeProfit        float64
	ExitPrice         sql.NullFloat64
	Status            string
	PnL               sql.NullFloat64
	Date              time.Time
	Notes             string
	Emotions          string
	Strategy          string
	TimeFrame         string
	MarketCondition   string
	ConfidenceLevel   int
	RiskAmount        float64
	PositionSize      float64
	TradeDuration     string
	Tags              string
	TradeSource       string
	ValidationResult  string
	AdminNotes        string
	AdminReviewStatus string
	ReviewTimestamp   sql.NullTime
	MentorID          string
	SessionID         string
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func decodeList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	json.Unmarshal([]byte(raw), &list)
	return list
}

func tradeToRow(t models.TradeEntry) tradeRow {
	row := tradeRow{
		ID:                t.ID,
		Pair:              t.Pair,
		Type:              string(t.Type),
		EntryPrice:        t.EntryPrice,
		StopLoss:          t.StopLoss,
		TakeProfit:        t.TakeProfit,
		ExitPrice:         nullFloat(t.ExitPrice),
		Status:            string(t.Status),
		PnL:               nullFloat(t.PnL),
		Date:              t.Date.UTC(),
		Notes:             t.Notes,
		Emotions:          encodeList(t.Emotions),
		Strategy:          t.Strategy,
		TimeFrame:         t.TimeFrame,
		MarketCondition:   t.MarketCondition,
		ConfidenceLevel:   t.ConfidenceLevel,
		RiskAmount:        t.RiskAmount,
		PositionSize:      t.PositionSize,
		TradeDuration:     t.TradeDuration,
		Tags:              encodeList(t.Tags),
		TradeSource:       string(t.TradeSource),
		ValidationResult:  string(t.ValidationResult),
		AdminNotes:        t.AdminNotes,
		AdminReviewStatus: string(t.AdminReviewStatus),
		MentorID:          t.MentorID,
		SessionID:         t.SessionID,
	}
	if t.ReviewTimestamp != nil {
		row.ReviewTimestamp = sql.NullTime{Time: t.ReviewTimestamp.UTC(), Valid: true}
	}
	return row
}

func rowToTrade(row tradeRow) models.TradeEntry {
	t := models.TradeEntry{
		ID:                row.ID,
		Pair:              row.Pair,
		Type:              models.Direction(row.Type),
		EntryPrice:        row.EntryPrice,
		StopLoss:          row.StopLoss,
		TakeProfit:        row.TakeProfit,
		ExitPrice:         floatPtr(row.ExitPrice),
		Status:            models.TradeStatus(row.Status),
		PnL:               floatPtr(row.PnL),
		Date:              row.Date,
		Notes:             row.Notes,
		Emotions:          decodeList(row.Emotions),
		Strategy:          row.Strategy,
		TimeFrame:         row.TimeFrame,
		MarketCondition:   row.MarketCondition,
		ConfidenceLevel:   row.ConfidenceLevel,
		RiskAmount:        row.RiskAmount,
		PositionSize:      row.PositionSize,
		TradeDuration:     row.TradeDuration,
		Tags:              decodeList(row.Tags),
		TradeSource:       models.TradeSource(row.TradeSource),
		ValidationResult:  models.ValidationResult(row.ValidationResult),
		AdminNotes:        row.AdminNotes,
		AdminReviewStatus: models.ReviewStatus(row.AdminReviewStatus),
		MentorID:          row.MentorID,
		SessionID:         row.SessionID,
	}
	if row.ReviewTimestamp.Valid {
		ts := row.ReviewTimestamp.Time
		t.ReviewTimestamp = &ts
	}
	return t
}

func (r *tradeRow) args() []interface{} {
	return []interface{}{
		r.ID, r.Pair, r.Type, r.EntryPrice, r.StopLoss, r.TakeProfit, r.ExitPrice, r.Status, r.PnL,
		r.Date, r.Notes, r.Emotions, r.Strategy, r.TimeFrame, r.MarketCondition, r.ConfidenceLevel,
		r.RiskAmount, r.PositionSize, r.TradeDuration, r.Tags, r.TradeSource, r.ValidationResult,
		r.AdminNotes, r.AdminReviewStatus, r.ReviewTimestamp, r.MentorID, r.SessionID,
	}
}

func (r *tradeRow) scanFrom(sc interface{ Scan(...interface{}) error }) error {
	return sc.Scan(
		&r.ID, &r.Pair, &r.Type, &r.EntryPrice, &r.StopLoss, &r.TakeProfit, &r.ExitPrice, &r.Status, &r.PnL,
		&r.Date, &r.Notes, &r.Emotions, &r.Strategy, &r.TimeFrame, &r.MarketCondition, &r.ConfidenceLevel,
		&r.RiskAmount, &r.PositionSize, &r.TradeDuration, &r.Tags, &r.TradeSource, &r.ValidationResult,
		&r.AdminNotes, &r.AdminReviewStatus, &r.ReviewTimestamp, &r.MentorID, &r.SessionID,
	)
}

// LogTrade inserts a new trade.
func (s *SQLiteStore) LogTrade(ctx context.Context, trade *models.TradeEntry) error {
	row := tradeToRow(*trade)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(row.args())), ", ")
	_, err := s.exec(ctx, "INSERT INTO trades ("+tradeColumns+") VALUES ("+placeholders+")", row.args()...)
	if err != nil {
		return fmt.Errorf("failed to log trade: %w", err)
	}
	return nil
}

// UpdateTrade replaces every column of an existing trade.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, trade *models.TradeEntry) error {
	row := tradeToRow(*trade)
	result, err := s.exec(ctx, `
		UPDATE trades SET
			pair = ?, type = ?, entry_price = ?, stop_loss = ?, take_profit = ?, exit_price = ?,
			status = ?, pnl = ?, date = ?, notes = ?, emotions = ?, strategy = ?, time_frame = ?,
			market_condition = ?, confidence_level = ?, risk_amount = ?, position_size = ?,
			trade_duration = ?, tags = ?, trade_source = ?, validation_result = ?, admin_notes = ?,
			admin_review_status = ?, review_timestamp = ?, mentor_id = ?, session_id = ?
		WHERE id = ?
	`, append(row.args()[1:], row.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("trade", trade.ID, "")
	}
	return nil
}

// GetTrade retrieves a trade by ID.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.TradeEntry, error) {
	var row tradeRow
	err := row.scanFrom(s.db.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("trade", id, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	trade := rowToTrade(row)
	return &trade, nil
}

// GetTrades retrieves trades newest-first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeEntry, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.Pair != "" {
		query += " AND UPPER(pair) = ?"
		args = append(args, strings.ToUpper(filter.Pair))
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += " AND trade_source = ?"
		args = append(args, string(filter.Source))
	}
	if filter.Strategy != "" {
		query += " AND LOWER(strategy) = ?"
		args = append(args, strings.ToLower(filter.Strategy))
	}
	if filter.MentorID != "" {
		query += " AND mentor_id = ?"
		args = append(args, filter.MentorID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND date >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND date <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		query += ` AND (LOWER(pair) LIKE ? ESCAPE '\' OR LOWER(notes) LIKE ? ESCAPE '\'` +
			` OR LOWER(strategy) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`
		args = append(args, like, like, like, like)
	}

	query += " ORDER BY date DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := []models.TradeEntry{}
	for rows.Next() {
		var row tradeRow
		if err := row.scanFrom(rows); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, rowToTrade(row))
	}

	return trades, rows.Err()
}

// DeleteTrade removes a trade by ID.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, id string) error {
	result, err := s.exec(ctx, "DELETE FROM trades WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("trade", id, "")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in s match literally under ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
