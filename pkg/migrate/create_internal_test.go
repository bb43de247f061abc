package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationAtRefusesDuplicates(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "loan notes", at)
	require.NoError(t, err)
	require.Contains(t, path, "20260301090000_loan_notes.sql")

	_, err = createSQLMigrationAt(dir, "loan notes", at)
	require.ErrorContains(t, err, "already exists")
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "add_due_index", sanitizeName("  Add Due-Index "))
	require.Equal(t, "", sanitizeName("!!!"))
}

func TestValidateAnnotations(t *testing.T) {
	require.NoError(t, validateAnnotations("ok.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementEnd\n-- +goose Down\n"))
	require.Error(t, validateAnnotations("order.sql", "-- +goose Down\n-- +goose Up\n"))
	require.Error(t, validateAnnotations("unbalanced.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n"))
}
