package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apperrors "mentor-desk/internal/errors"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// Read operations
	OpRead OperationType = "READ"

	// Write operations (blocked in read-only mode)
	OpAddRule       OperationType = "ADD_RULE"
	OpEditRule      OperationType = "EDIT_RULE"
	OpDeleteRule    OperationType = "DELETE_RULE"
	OpReorderRules  OperationType = "REORDER_RULES"
	OpImportRules   OperationType = "IMPORT_RULES"
	OpLogTrade      OperationType = "LOG_TRADE"
	OpCloseTrade    OperationType = "CLOSE_TRADE"
	OpEditTrade     OperationType = "EDIT_TRADE"
	OpDeleteTrade   OperationType = "DELETE_TRADE"
	OpReviewTrade   OperationType = "REVIEW_TRADE"
	OpValidateTrade OperationType = "VALIDATE_TRADE"
)

// ReadOnlyError represents an error when attempting a write operation in read-only mode.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("operation %s blocked: read-only mode is enabled", e.Operation)
}

// Is matches apperrors.ErrReadOnlyMode.
func (e *ReadOnlyError) Is(target error) bool {
	return target == apperrors.ErrReadOnlyMode
}

// AccessController manages read-only mode and operation permissions.
type AccessController struct {
	readOnly    bool
	auditLogger *AuditLogger
	logger      zerolog.Logger
	mu          sync.RWMutex
}

// NewAccessController creates a new access controller. auditLogger may be nil.
func NewAccessController(readOnly bool, auditLogger *AuditLogger) *AccessController {
	return &AccessController{
		readOnly:    readOnly,
		auditLogger: auditLogger,
		logger:      zerolog.Nop(),
	}
}

// SetLogger sets the logger that reports failed audit writes.
func (ac *AccessController) SetLogger(logger zerolog.Logger) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.logger = logger
}

// IsReadOnly returns whether read-only mode is enabled.
func (ac *AccessController) IsReadOnly() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.readOnly
}

// SetReadOnly sets the read-only mode.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.readOnly = readOnly
}

// CheckPermission checks if an operation is allowed.
func (ac *AccessController) CheckPermission(ctx context.Context, op OperationType) error {
	if ac == nil {
		return nil
	}
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	if !ac.readOnly || !isWriteOperation(op) {
		return nil
	}

	if ac.auditLogger != nil {
		if err := ac.auditLogger.LogReadOnlyViolation(ctx, string(op)); err != nil {
			ac.logger.Warn().Err(err).Str("operation", string(op)).Msg("Audit write failed")
		}
	}
	return &ReadOnlyError{Operation: op}
}

// RecordRejection audits a mutation rejected for invalid input. Errors other
// than validation errors are ignored.
func (ac *AccessController) RecordRejection(ctx context.Context, err error) {
	if ac == nil || ac.auditLogger == nil {
		return
	}
	var verr *apperrors.ValidationError
	if !apperrors.As(err, &verr) {
		return
	}
	if werr := ac.auditLogger.LogInputValidation(ctx, verr.Field, fmt.Sprint(verr.Value), verr.Message); werr != nil {
		ac.mu.RLock()
		logger := ac.logger
		ac.mu.RUnlock()
		logger.Warn().Err(werr).Str("field", verr.Field).Msg("Audit write failed")
	}
}

// isWriteOperation returns true if the operation modifies state.
func isWriteOperation(op OperationType) bool {
	for _, w := range WriteOperations() {
		if w == op {
			return true
		}
	}
	return false
}

// WriteOperations returns a list of all write operations.
func WriteOperations() []OperationType {
	return []OperationType{
		OpAddRule,
		OpEditRule,
		OpDeleteRule,
		OpReorderRules,
		OpImportRules,
		OpLogTrade,
		OpCloseTrade,
		OpEditTrade,
		OpDeleteTrade,
		OpReviewTrade,
		OpValidateTrade,
	}
}

// OperationDescription returns a human-readable description of an operation.
func OperationDescription(op OperationType) string {
	switch op {
	case OpRead:
		return "Read data"
	case OpAddRule:
		return "Add rule"
	case OpEditRule:
		return "Edit rule"
	case OpDeleteRule:
		return "Delete rule"
	case OpReorderRules:
		return "Reorder rules"
	case OpImportRules:
		return "Import rules"
	case OpLogTrade:
		return "Log trade"
	case OpCloseTrade:
		return "Close trade"
	case OpEditTrade:
		return "Edit trade"
	case OpDeleteTrade:
		return "Delete trade"
	case OpReviewTrade:
		return "Review trade"
	case OpValidateTrade:
		return "Validate trade"
	default:
		return string(op)
	}
}
