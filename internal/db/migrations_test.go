package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestInitMigrationDefinesSchema(t *testing.T) {
	up, err := fs.ReadFile(migrations, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(up)

	for _, table := range []string{"words", "etymologies", "verifications", "etymology_support", "staged_words", "staged_verifications"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, sql, "UNIQUE (word, language)")
	assert.Contains(t, sql, "UNIQUE (word_id, fingerprint)")
	assert.Contains(t, sql, "REFERENCES words(id) ON DELETE CASCADE")
}
