package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/db/migrations"
)

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", upSection(content))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
	assert.Equal(t, "\nSELECT 2;", upSection("-- +migrate Up\nSELECT 2;"))
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	files, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_catalog.sql", "0002_economy.sql"}, files)

	for _, name := range files {
		raw, err := migrations.FS.ReadFile(name)
		require.NoError(t, err)
		up := upSection(string(raw))
		assert.NotContains(t, up, "DROP SCHEMA", name)
		assert.True(t, strings.Contains(up, "CREATE SCHEMA IF NOT EXISTS"), name)
	}
}

func TestEconomySchemaKeepsOneMountedRow(t *testing.T) {
	raw, err := migrations.FS.ReadFile("0002_economy.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ON economy.sword_stock (account_id) WHERE is_mounted")
}
