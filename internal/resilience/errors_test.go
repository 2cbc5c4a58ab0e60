package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"explicit", NewTransientError(errors.New("busy")), true},
		{"wrapped explicit", fmt.Errorf("store: %w", NewTransientError(errors.New("busy"))), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", eris.Wrap(&pgconn.PgError{Code: "40P01"}, "postgres: create leads"), true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite locked message", errors.New("sqlite: insert lead: database is locked (5) (SQLITE_BUSY)"), true},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"network timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"context canceled", fmt.Errorf("query: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("busy")
	err := NewTransientError(inner)
	assert.Equal(t, "busy", err.Error())
	assert.ErrorIs(t, err, inner)
}
