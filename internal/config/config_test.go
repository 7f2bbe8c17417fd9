package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, "vi", s.Locale.Name)
	assert.Equal(t, "Asia/Ho_Chi_Minh", s.Locale.TimeZone)
	assert.InDelta(t, 0.6, s.Validation.Threshold, 1e-9)
	assert.Equal(t, 15*time.Minute, s.Commit.CorrectionWindow)
	assert.Equal(t, 24*time.Hour, s.Commit.Retention)
	assert.Equal(t, 8, s.Bus.Prefetch)
	assert.False(t, s.Reply.Gemini.Enabled)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/chatledger/journal.db"), s.Journal.Path)

	retry := s.RetryOptions()
	assert.Equal(t, 4, retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, retry.InitialDelay)
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
commit:
  correction_window: 10m
validation:
  threshold: 0.75
`), 0600))

	t.Setenv("CHATLEDGER_BUS_PREFETCH", "3")
	t.Setenv("GEMINI_API_KEY", "key-123")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, 10*time.Minute, s.Commit.CorrectionWindow)
	assert.InDelta(t, 0.75, s.Validation.Threshold, 1e-9)
	assert.Equal(t, 3, s.Bus.Prefetch)
	assert.Equal(t, "key-123", s.Reply.Gemini.APIKey)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		modify func(*Settings)
		name   string
	}{
		{name: "bad level", modify: func(s *Settings) { s.Logging.Level = "loud" }},
		{name: "zero threshold", modify: func(s *Settings) { s.Validation.Threshold = 0 }},
		{name: "threshold above one", modify: func(s *Settings) { s.Validation.Threshold = 1.5 }},
		{name: "negative past days", modify: func(s *Settings) { s.Validation.MaxPastDays = -1 }},
		{name: "retention shorter than window", modify: func(s *Settings) { s.Commit.Retention = time.Minute }},
		{name: "no attempts", modify: func(s *Settings) { s.Commit.MaxAttempts = 0 }},
		{name: "no prefetch", modify: func(s *Settings) { s.Bus.Prefetch = 0 }},
		{name: "gemini without key", modify: func(s *Settings) { s.Reply.Gemini.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(newViper())
			require.NoError(t, err)
			tt.modify(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHATLEDGER_TEST_DOTENV=from-file\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("CHATLEDGER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("CHATLEDGER_TEST_DOTENV"))
}

func TestLoadSheetsConfig(t *testing.T) {
	for _, k := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN", "GOOGLE_SHEETS_SPREADSHEET_ID",
	} {
		t.Setenv(k, "")
	}

	t.Run("legacy environment names", func(t *testing.T) {
		t.Setenv("GOOGLE_CREDENTIALS_FILE", "/creds.json")
		t.Setenv("GOOGLE_SHEET_ID", "sheet-legacy")

		cfg, err := LoadSheetsConfig(newViper())
		require.NoError(t, err)
		assert.Equal(t, "/creds.json", cfg.ServiceAccountPath)
		assert.Equal(t, "sheet-legacy", cfg.SpreadsheetID)
		assert.Equal(t, "auto", cfg.TabName)
		assert.Equal(t, "Tháng %d", cfg.TabTemplate)
	})

	t.Run("viper wins", func(t *testing.T) {
		t.Setenv("GOOGLE_CREDENTIALS_FILE", "/creds.json")
		t.Setenv("GOOGLE_SHEET_ID", "sheet-legacy")

		v := newViper()
		v.Set("sheets.spreadsheet_id", "sheet-config")
		v.Set("sheets.tab", "Chi tiêu")
		cfg, err := LoadSheetsConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "sheet-config", cfg.SpreadsheetID)
		assert.Equal(t, "Chi tiêu", cfg.TabName)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Setenv("GOOGLE_CREDENTIALS_FILE", "")
		t.Setenv("GOOGLE_SHEET_ID", "sheet")
		_, err := LoadSheetsConfig(newViper())
		assert.Error(t, err)
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CHATLEDGER_TEST_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x.db"), ExpandPath("~/x.db"))
	assert.Equal(t, "/data/x.db", ExpandPath("$CHATLEDGER_TEST_DIR/x.db"))
}

func TestValidateErrorsAreConfigErrors(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)
	s.Bus.Prefetch = 0
	assert.ErrorIs(t, s.Validate(), common.ErrInvalidConfig)
}
