package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}
	cmd.AddCommand(authSheetsCmd())
	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This command opens a Google consent page, waits for the redirect on a local
port and stores the refresh token in your config file so that
'tariff history export --format sheets' can write spreadsheets.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")
	cmd.Flags().String("callback", "localhost:8080", "Address of the local OAuth2 redirect listener")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	clientID := firstNonEmpty(flagString(cmd, "client-id"), viper.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	clientSecret := firstNonEmpty(flagString(cmd, "client-secret"), viper.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	if clientID == "" || clientSecret == "" {
		return common.NewUserError(
			"OAuth2 credentials not found. Set sheets.client_id and sheets.client_secret or use --client-id and --client-secret",
			common.ErrMissingConfig)
	}

	tokenFile, err := sheetsTokenFile()
	if err != nil {
		return err
	}
	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	token, err := sheets.GetOrCreateToken(cmd.Context(), sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		CallbackAddr: flagString(cmd, "callback"),
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := saveConfigValue(viper.ConfigFileUsed(), "sheets.refresh_token", token.RefreshToken); err != nil {
		slog.Warn("Could not save refresh token to config file", "error", err)
		fmt.Fprintf(cmd.OutOrStdout(), "Add this to your config.yaml:\n\nsheets:\n  refresh_token: %q\n", token.RefreshToken)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Google Sheets is configured. Run 'tariff history export --format sheets' to export.")
	return nil
}

func sheetsTokenFile() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "tariff", "sheets-token.json"), nil
}

// saveConfigValue sets key in the config file at path without copying
// defaults or environment values into it. An empty path means the default
// config location.
func saveConfigValue(path, key string, value any) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".config", "tariff", "config.yaml")
	}
	path = config.ExpandPath(path)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

func flagString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
