package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/chat-ledger/internal/cli"
	"github.com/Veraticus/chat-ledger/internal/config"
	"github.com/Veraticus/chat-ledger/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

This command will:
1. Open a local callback server and print the Google consent URL
2. Save the token for future use
3. Update your config file with the refresh token

Not needed when a service account is configured.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")
	cmd.Flags().String("listen", "localhost:8080", "Address for the OAuth callback")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		// Credentials are what this command creates; only the client is needed.
		slog.Debug("sheets configuration incomplete", "error", err)
		sheetsCfg = &sheets.Config{
			ClientID:     viper.GetString("sheets.client_id"),
			ClientSecret: viper.GetString("sheets.client_secret"),
		}
		if sheetsCfg.ClientID == "" {
			sheetsCfg.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
		}
		if sheetsCfg.ClientSecret == "" {
			sheetsCfg.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
		}
	}

	clientID, clientSecret := sheetsCfg.ClientID, sheetsCfg.ClientSecret
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}
	listen, _ := cmd.Flags().GetString("listen")

	tokenFile, err := tokenPath()
	if err != nil {
		return err
	}
	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	token, err := sheets.GetOrCreateToken(ctx, sheets.OAuth2Config{
		Logger:       slog.Default(),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		ListenAddr:   listen,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	out := cmd.OutOrStdout()
	viper.Set("sheets.refresh_token", token.RefreshToken)
	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		fmt.Fprintln(out, cli.FormatWarning("Could not save the refresh token. Add this to your config.yaml:")) //nolint:forbidigo // User-facing output
		fmt.Fprintf(out, "sheets:\n  refresh_token: %q\n", token.RefreshToken)                                  //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Fprintln(out, cli.FormatSuccess("Google Sheets is authenticated. Run 'chatledger serve' to start.")) //nolint:forbidigo // User-facing output
	return nil
}

func tokenPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "chatledger", "sheets-token.json"), nil
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(home, ".config", "chatledger", "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
