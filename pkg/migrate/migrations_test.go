package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilffren/libronova/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no %s migration file found", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestBooksMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_books")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS books",
		"CONSTRAINT ux_books_isbn UNIQUE (isbn)",
		"CHECK (total_copies >= 1)",
		"CHECK (available_copies >= 0 AND available_copies <= total_copies)",
		"version bigint NOT NULL DEFAULT 1",
		"DROP TABLE IF EXISTS books",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLoansMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_loans")
	for _, sub := range []string{
		"FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE RESTRICT",
		"FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE RESTRICT",
		"CHECK (due_date > start_date)",
		"CHECK (return_date IS NULL OR return_date >= start_date)",
		"CHECK ((status = 'active') = (return_date IS NULL))",
		"ix_loans_status_due ON loans (status, due_date)",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMembersMigrationRestrictsNumber(t *testing.T) {
	content := readMigration(t, "create_members")
	require.Contains(t, content, "CONSTRAINT ux_members_member_number UNIQUE (member_number)")
	require.Contains(t, content, "member_number ~ '^[0-9]+$'")
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Loan Notes")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_loan_notes.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}
