package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

const (
	defaultCallbackAddr = "localhost:8080"
	defaultAuthTimeout  = 5 * time.Minute
	oauthState          = "tariff-sheets"
)

// OAuth2Config holds the settings of the interactive OAuth2 flow.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	// CallbackAddr is the host:port the local redirect listener binds.
	CallbackAddr string
	Timeout      time.Duration
}

func oauthConfig(clientID, clientSecret, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
}

// AuthenticateOAuth2Interactive runs the browser OAuth2 flow and returns a
// token carrying a refresh token. The token is saved when TokenFile is set.
func AuthenticateOAuth2Interactive(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	if config.CallbackAddr == "" {
		config.CallbackAddr = defaultCallbackAddr
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultAuthTimeout
	}

	oauthCfg := oauthConfig(config.ClientID, config.ClientSecret, "http://"+config.CallbackAddr+"/callback")

	codes := make(chan string, 1)
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(oauthState, codes, errs))
	server := &http.Server{
		Addr:              config.CallbackAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("failed to start callback server: %w", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := oauthCfg.AuthCodeURL(oauthState, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	slog.Info("Google Sheets authentication required")
	slog.Info("Please visit this URL to authenticate", "url", authURL)

	var authCode string
	select {
	case authCode = <-codes:
	case err := <-errs:
		return nil, err
	case <-time.After(config.Timeout):
		return nil, fmt.Errorf("authentication timeout: no response received within %s", config.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := oauthCfg.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, token); err != nil {
			slog.Warn("failed to save token to file", "error", err, "file", config.TokenFile)
		} else {
			slog.Info("token saved", "file", config.TokenFile)
		}
	}

	return token, nil
}

// callbackHandler forwards the authorization code of the redirect to codes,
// or an error to errs. Channels must be buffered.
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, "<html><body><h1>Authentication Failed</h1><p>State mismatch.</p></body></html>")
			trySend(errs, errors.New("oauth callback state mismatch"))
		case query.Get("code") == "":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, "<html><body><h1>Authentication Failed</h1><p>No authorization code received.</p></body></html>")
			trySend(errs, errors.New("no authorization code received"))
		default:
			_, _ = fmt.Fprint(w, "<html><body><h1>Authentication Successful</h1><p>You can close this window and return to the terminal.</p></body></html>")
			trySend(codes, query.Get("code"))
		}
	})
}

func trySend[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
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

// GetOrCreateToken returns the saved token when it carries a refresh token and
// runs the interactive flow otherwise.
func GetOrCreateToken(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	if config.TokenFile != "" {
		token, err := LoadToken(config.TokenFile)
		if err == nil && token.RefreshToken != "" {
			slog.Info("loaded existing token", "file", config.TokenFile)
			return token, nil
		}
		slog.Info("no usable token found, starting OAuth2 flow")
	}

	return AuthenticateOAuth2Interactive(ctx, config)
}
