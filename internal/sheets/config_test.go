package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := DefaultConfig()
		c.ServiceAccountPath = "/path/to/key.json"
		c.SpreadsheetID = "sheet-1"
		return c
	}

	tests := []struct {
		name    string
		errMsg  string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "service account",
			modify: func(*Config) {},
		},
		{
			name: "oauth",
			modify: func(c *Config) {
				c.ServiceAccountPath = ""
				c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "token"
			},
		},
		{
			name: "partial oauth credentials",
			modify: func(c *Config) {
				c.ServiceAccountPath = ""
				c.ClientID, c.RefreshToken = "id", "token"
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			modify: func(c *Config) {
				c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "token"
			},
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name:    "missing spreadsheet",
			modify:  func(c *Config) { c.SpreadsheetID = "" },
			wantErr: true,
			errMsg:  "spreadsheet ID is required",
		},
		{
			name:    "template without month",
			modify:  func(c *Config) { c.TabTemplate = "Expenses" },
			wantErr: true,
			errMsg:  "must contain %d",
		},
		{
			name: "fixed tab ignores template",
			modify: func(c *Config) {
				c.TabName = "Chi tiêu"
				c.TabTemplate = ""
			},
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: true,
			errMsg:  "timeout cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
