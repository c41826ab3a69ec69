package dbsink

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
)

// isConnectionError reports whether err looks like a transient
// connectivity failure rather than a query or constraint error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if pgErr, ok := err.(*pgconn.PgError); ok {
		code := pgErr.Code
		return strings.HasPrefix(code, "08") || code == "57P01" || code == "57P02" || code == "57P03"
	}
	errStr := strings.ToLower(err.Error())
	for _, kw := range []string{
		"connection refused", "connection reset", "connection closed",
		"unexpected eof", "broken pipe", "no such host",
		"network is unreachable", "timeout", "connection lost",
		"server closed the connection",
	} {
		if strings.Contains(errStr, kw) {
			return true
		}
	}
	return false
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), i.e. a duplicate primary key.
func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	return ok && pgErr.Code == "23505"
}

// execWithRetry executes query with an exponential-backoff retry
// strategy: up to 5 attempts for ordinary errors and up to 10 for
// connection errors. Unique-key violations (23505), undefined-column
// errors (42703) and a cancelled context return immediately.
func execWithRetry(ctx context.Context, db *pgxpool.Pool, query string, args ...interface{}) (pgconn.CommandTag, error) {
	const maxAttempts = 5
	const maxConnectionAttempts = 10
	backoff := 500 * time.Millisecond

	var tag pgconn.CommandTag
	var err error

	for attempt := 1; attempt <= maxConnectionAttempts; attempt++ {
		tag, err = db.Exec(ctx, query, args...)
		if err == nil {
			return tag, nil
		}
		if isUniqueViolation(err) {
			return tag, err
		}
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "42703" {
			return tag, err
		}
		if ctx.Err() != nil {
			return tag, ctx.Err()
		}

		isConnErr := isConnectionError(err)
		limit := maxAttempts
		if isConnErr {
			limit = maxConnectionAttempts
		}
		if attempt >= limit {
			break
		}

		obslog.Get().WithError(err).Debugf("exec failed (attempt %d/%d)", attempt, limit)

		current := backoff
		if isConnErr && attempt > maxAttempts {
			current = backoff * 3
		}
		time.Sleep(current)
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return tag, err
}
