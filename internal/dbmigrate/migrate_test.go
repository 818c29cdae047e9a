package dbmigrate

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/migrations"
)

func TestSelectDatabaseURL(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		wantURL     string
		wantSource  string
		wantWarning bool
	}{
		{
			name:       "direct wins",
			cfg:        config.Config{DatabaseURLDirect: "postgres://direct", DatabaseURLRaw: "postgres://url", DatabaseURLPooled: "postgres://pooled"},
			wantURL:    "postgres://direct",
			wantSource: "DATABASE_URL_DIRECT",
		},
		{
			name:       "falls back to DATABASE_URL",
			cfg:        config.Config{DatabaseURLRaw: "postgres://url", DatabaseURLPooled: "postgres://pooled"},
			wantURL:    "postgres://url",
			wantSource: "DATABASE_URL",
		},
		{
			name:        "pooled warns",
			cfg:         config.Config{DatabaseURLPooled: "postgres://pooled"},
			wantURL:     "postgres://pooled",
			wantSource:  "DATABASE_URL_POOLED",
			wantWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			dbURL, source, warning, err := SelectDatabaseURL(&cfg, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, dbURL)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.wantWarning, warning != "")
		})
	}
}

func TestSelectDatabaseURLErrors(t *testing.T) {
	_, _, _, err := SelectDatabaseURL(&config.Config{DatabaseURLRaw: "postgres://url"}, true)
	assert.Error(t, err)

	_, _, _, err = SelectDatabaseURL(&config.Config{}, false)
	assert.Error(t, err)
}

func TestRunRejectsBadInput(t *testing.T) {
	assert.EqualError(t, Run("up", "", nil), "database URL is empty")
	assert.EqualError(t, Run("reset", "postgres://x", nil), `unsupported command "reset"`)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "00001_init.sql")
}
