package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/deckgen-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "deck_tasks",
		ColumnName:     "title",
		ConstraintName: "deck_tasks_terminal_fields",
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantIs    error
		wantSame  bool
		wantInMsg string
	}{
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "unique violation", err: newPgError(uniqueViolationCode), wantIs: store.ErrDuplicate},
		{
			name:      "check violation",
			err:       newPgError(checkViolationCode),
			wantIs:    store.ErrInvalidEntity,
			wantInMsg: "deck_tasks_terminal_fields",
		},
		{
			name:      "not null violation",
			err:       newPgError(notNullViolationCode),
			wantIs:    store.ErrInvalidEntity,
			wantInMsg: "title",
		},
		{name: "serialization failure", err: newPgError(serializationFailureCode), wantIs: store.ErrTransactionFailed},
		{name: "deadlock", err: fmt.Errorf("exec: %w", newPgError(deadlockDetectedCode)), wantIs: store.ErrTransactionFailed},
		{name: "unmapped pg error", err: newPgError("42P01"), wantSame: true},
		{name: "generic error", err: errors.New("network down"), wantSame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.wantSame {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.wantIs)
			if tt.wantInMsg != "" {
				assert.Contains(t, got.Error(), tt.wantInMsg)
			}
		})
	}

	assert.NoError(t, MapError(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), "task"))

	err := CheckRowsAffected(sqlmock.NewResult(0, 0), "task")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "task not found")

	assert.Equal(t, store.ErrNotFound, CheckRowsAffected(sqlmock.NewResult(0, 0), ""))

	err = CheckRowsAffected(sqlmock.NewErrorResult(errors.New("driver")), "task")
	assert.ErrorContains(t, err, "failed to get rows affected")

	assert.Error(t, CheckRowsAffected(nil, "task"))
}
