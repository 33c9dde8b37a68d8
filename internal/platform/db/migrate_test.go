package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	require.Equal(t, "0001_init.sql", names[0])
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}

func TestInitMigrationDefinesUsers(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	sql := string(body)
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS users", "deleted_at", "audit_logs", "'Moderator'"} {
		require.True(t, strings.Contains(sql, want), "missing %q", want)
	}
}
