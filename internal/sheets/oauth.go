package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// OAuth2Config holds OAuth2 configuration for the interactive login.
type OAuth2Config struct {
	Logger       *slog.Logger
	ClientID     string
	ClientSecret string
	// TokenFile is where the token is cached between runs.
	TokenFile string
	// ListenAddr receives the OAuth callback. Defaults to localhost:8080.
	ListenAddr string
	Timeout    time.Duration
}

func (c OAuth2Config) oauth(redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
}

// AuthenticateOAuth2Interactive performs the OAuth2 flow with a local
// callback server and returns a token carrying a refresh token.
func AuthenticateOAuth2Interactive(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: OAuth client ID and secret are required", common.ErrMissingConfig)
	}
	logger := common.OrDefault(config.Logger)
	addr := config.ListenAddr
	if addr == "" {
		addr = "localhost:8080"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	oauthConfig := config.oauth("http://" + listener.Addr().String() + "/callback")
	state := uuid.NewString()

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errorChan <- fmt.Errorf("no authorization code received")
			_, _ = fmt.Fprint(w, "<html><body><h1>Authentication failed</h1><p>No authorization code received.</p></body></html>")
			return
		}
		codeChan <- code
		_, _ = fmt.Fprint(w, "<html><body><h1>Authenticated</h1><p>You can close this window.</p></body></html>")
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("callback server failed: %w", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Error shutting down callback server", "error", err)
		}
	}()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	logger.Info("🔐 Google Sheets authentication required")
	logger.Info("Please visit this URL to authenticate", "url", authURL)

	var authCode string
	select {
	case authCode = <-codeChan:
		logger.Info("Received authorization code")
	case err := <-errorChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("authentication timeout - no response received within %s", timeout)
	}

	token, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, token); err != nil {
			logger.Warn("Failed to save token to file", "error", err, "file", config.TokenFile)
		} else {
			logger.Info("Token saved", "file", config.TokenFile)
		}
	}

	return token, nil
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// saveToken writes token with owner-only permissions.
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// GetOrCreateToken returns the cached token, refreshed if needed, or runs
// the interactive flow when none is cached.
func GetOrCreateToken(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	logger := common.OrDefault(config.Logger)
	if config.TokenFile != "" {
		token, err := LoadToken(config.TokenFile)
		if err == nil {
			if token.Valid() {
				return token, nil
			}
			refreshed, err := config.oauth("").TokenSource(ctx, token).Token()
			if err == nil {
				if err := saveToken(config.TokenFile, refreshed); err != nil {
					logger.Warn("Failed to save refreshed token", "error", err)
				}
				return refreshed, nil
			}
			logger.Warn("Cached token could not be refreshed", "error", err)
		}
		logger.Info("No usable token found, starting OAuth2 flow")
	}

	return AuthenticateOAuth2Interactive(ctx, config)
}
