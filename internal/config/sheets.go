package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/tariff/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets export settings. Values under the
// sheets key take precedence over the GOOGLE_SHEETS_* environment variables.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	return loadSheetsConfig(v, os.Getenv)
}

func loadSheetsConfig(v *viper.Viper, getenv func(string) string) (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	pick := func(key, env string) string {
		if value := v.GetString(key); value != "" {
			return value
		}
		return getenv(env)
	}

	cfg.ServiceAccountPath = ExpandPath(pick("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	cfg.ClientID = pick("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = pick("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = pick("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.SpreadsheetID = pick("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := pick("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		cfg.SpreadsheetName = name
	}
	if tz := v.GetString("sheets.timezone"); tz != "" {
		cfg.TimeZone = tz
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
