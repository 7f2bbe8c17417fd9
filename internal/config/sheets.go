package config

import (
	"os"

	"github.com/Veraticus/chat-ledger/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or CHATLEDGER_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*, then GOOGLE_SHEET_ID and GOOGLE_CREDENTIALS_FILE)
// 3. Default values
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ExpandPath(firstNonEmpty(
		v.GetString("sheets.service_account_path"),
		os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"),
		os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	))
	config.ClientID = firstNonEmpty(v.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	config.ClientSecret = firstNonEmpty(v.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	config.RefreshToken = firstNonEmpty(v.GetString("sheets.refresh_token"), os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	config.SpreadsheetID = firstNonEmpty(
		v.GetString("sheets.spreadsheet_id"),
		os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		os.Getenv("GOOGLE_SHEET_ID"),
	)
	if tab := v.GetString("sheets.tab"); tab != "" {
		config.TabName = tab
	}
	if tmpl := v.GetString("sheets.tab_template"); tmpl != "" {
		config.TabTemplate = tmpl
	}
	if timeout := v.GetDuration("sheets.timeout"); timeout > 0 {
		config.Timeout = timeout
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
