package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpPgxConstraint(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "chk_books_available_copies", TableName: "books"}
	err := Wrap(CodeInvariantViolation, fmt.Errorf("save book: %w", pgErr), "stock out of bounds")

	d := Dump(err)
	assert.Equal(t, CodeInvariantViolation, d.Code)
	assert.Equal(t, "23514", d.PGCode)
	assert.Equal(t, "books", d.PGTable)
	assert.Equal(t, "available copies must stay within [0, total]", d.Rule)
	require.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "chk_books_available_copies", fields["pg_constraint"])
	assert.Equal(t, d.Rule, fields["rule"])
}

func TestDumpPqError(t *testing.T) {
	err := fmt.Errorf("insert member: %w", &pq.Error{Code: "23505", Constraint: "ux_members_member_number"})

	d := Dump(err)
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "member number must be unique", d.Rule)
	assert.Empty(t, d.Code)
}

func TestDumpRetryableWithoutDriverError(t *testing.T) {
	d := Dump(New(CodeConcurrentModification, "book changed"))
	assert.True(t, d.Retryable)
	assert.Empty(t, d.PGCode)
	assert.NotContains(t, d.Fields(), "pg_code")
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
