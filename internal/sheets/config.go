// Package sheets stores ledger rows in a Google Sheets spreadsheet.
package sheets

import (
	"fmt"
	"strings"
	"time"
)

// TabAuto selects one tab per month, named with Config.TabTemplate.
const TabAuto = "auto"

// Config holds the configuration for the Google Sheets ledger.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	// TabName is a fixed tab title, or TabAuto for monthly tabs.
	TabName string
	// TabTemplate names monthly tabs; it receives the month number.
	TabTemplate string
	Timeout     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TabName:     TabAuto,
		TabTemplate: "Tháng %d",
		Timeout:     30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required")
	}

	if strings.TrimSpace(c.TabName) == "" {
		return fmt.Errorf("tab name cannot be empty")
	}

	if c.TabName == TabAuto && !strings.Contains(c.TabTemplate, "%d") {
		return fmt.Errorf("tab template %q must contain %%d", c.TabTemplate)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}
