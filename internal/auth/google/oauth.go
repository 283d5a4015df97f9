// Package google handles Google OAuth2 authentication for the Drive backend
package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fakturo/fakturo/pkg/errors"
	"github.com/fakturo/fakturo/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// OAuthConfig holds OAuth2 configuration
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// FakturoGoogleAuth handles Google OAuth2 authentication
type FakturoGoogleAuth struct {
	config    *oauth2.Config
	tokenFile string
	logger    *zap.Logger
}

// NewFakturoGoogleAuth creates a new Google authentication handler
func NewFakturoGoogleAuth(cfg *OAuthConfig, tokenFile string) (*FakturoGoogleAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.NewAuthError("missing client ID or client secret", nil)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{drive.DriveFileScope}
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     oauthgoogle.Endpoint,
	}

	return &FakturoGoogleAuth{
		config:    config,
		tokenFile: tokenFile,
		logger:    logger.Get(),
	}, nil
}

// Authenticate performs the OAuth2 flow and returns an authenticated client
func (a *FakturoGoogleAuth) Authenticate(ctx context.Context) (*http.Client, error) {
	// Try to load existing token
	token, err := a.loadToken()
	if err == nil && token.Valid() {
		a.logger.Info("Using existing valid token")
		return a.config.Client(ctx, token), nil
	}

	// If token exists but expired, try to refresh
	if token != nil && !token.Valid() && token.RefreshToken != "" {
		a.logger.Info("Refreshing expired token")
		tokenSource := a.config.TokenSource(ctx, token)
		newToken, err := tokenSource.Token()
		if err == nil {
			if err := a.saveToken(newToken); err != nil {
				a.logger.Warn("Failed to save refreshed token", zap.Error(err))
			}
			return a.config.Client(ctx, newToken), nil
		}
		a.logger.Warn("Failed to refresh token, starting new auth flow", zap.Error(err))
	}

	// Perform new authentication
	a.logger.Info("Starting new OAuth2 authentication flow")
	token, err = a.performOAuth2Flow(ctx)
	if err != nil {
		return nil, errors.NewAuthError("OAuth2 flow failed", err)
	}

	if err := a.saveToken(token); err != nil {
		a.logger.Warn("Failed to save token", zap.Error(err))
	}

	return a.config.Client(ctx, token), nil
}

// performOAuth2Flow executes the OAuth2 authorization flow
func (a *FakturoGoogleAuth) performOAuth2Flow(ctx context.Context) (*oauth2.Token, error) {
	state := a.generateStateToken()
	authURL := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)
	server := a.startCallbackServer(state, codeChan, errChan)
	if server != nil {
		defer server.Shutdown(ctx)
	}

	fmt.Printf("\nPlease visit this URL to authorize Fakturo:\n%s\n\n", authURL)
	fmt.Println("Waiting for authorization...")

	select {
	case code := <-codeChan:
		token, err := a.config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange code for token: %w", err)
		}
		fmt.Println("✓ Authorization successful!")
		return token, nil
	case err := <-errChan:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timeout")
	}
}

// startCallbackServer starts a local HTTP server to receive the OAuth callback
func (a *FakturoGoogleAuth) startCallbackServer(expectedState string, codeChan chan<- string, errChan chan<- error) *http.Server {
	listener, err := net.Listen("tcp", "localhost:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "localhost:0")
		if err != nil {
			errChan <- fmt.Errorf("failed to start callback server: %w", err)
			return nil
		}
	}

	mux := http.NewServeMux()
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != expectedState {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			errChan <- fmt.Errorf("invalid state parameter")
			return
		}

		if errCode := r.URL.Query().Get("error"); errCode != "" {
			http.Error(w, fmt.Sprintf("Authorization failed: %s", errCode), http.StatusBadRequest)
			errChan <- fmt.Errorf("authorization failed: %s", errCode)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			errChan <- fmt.Errorf("no authorization code received")
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `
			<html>
			<head><title>Fakturo Authorization</title></head>
			<body>
				<h1>✓ Authorization Successful!</h1>
				<p>You can now close this window and return to Fakturo.</p>
			</body>
			</html>
		`)

		codeChan <- code
	})

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Callback server error", zap.Error(err))
		}
	}()

	return server
}

// generateStateToken generates a random state token for OAuth2 security
func (a *FakturoGoogleAuth) generateStateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// GetDriveService creates a Google Drive service client
func (a *FakturoGoogleAuth) GetDriveService(ctx context.Context) (*drive.Service, error) {
	client, err := a.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.NewAuthError("failed to create Drive service", err)
	}

	return service, nil
}

// RevokeToken revokes the stored token
func (a *FakturoGoogleAuth) RevokeToken() error {
	token, err := a.loadToken()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(
		fmt.Sprintf("https://oauth2.googleapis.com/revoke?token=%s", token.AccessToken),
		"application/x-www-form-urlencoded",
		nil,
	)
	if err != nil {
		return errors.NewAuthError("failed to revoke token", err)
	}
	defer resp.Body.Close()

	if err := os.Remove(a.tokenFile); err != nil && !os.IsNotExist(err) {
		return errors.NewAuthError("failed to remove token file", err)
	}

	a.logger.Info("Token revoked successfully")
	return nil
}

// Token represents the OAuth2 token with metadata
type Token struct {
	*oauth2.Token
	SavedAt time.Time `json:"saved_at"`
}

// loadToken loads a token from file
func (a *FakturoGoogleAuth) loadToken() (*oauth2.Token, error) {
	if a.tokenFile == "" {
		return nil, fmt.Errorf("no token file specified")
	}

	data, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	return token.Token, nil
}

// saveToken saves a token to file
func (a *FakturoGoogleAuth) saveToken(token *oauth2.Token) error {
	if a.tokenFile == "" {
		return fmt.Errorf("no token file specified")
	}

	dir := filepath.Dir(a.tokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	wrappedToken := Token{
		Token:   token,
		SavedAt: time.Now(),
	}

	data, err := json.MarshalIndent(wrappedToken, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(a.tokenFile, data, 0600)
}

// IsAuthenticated checks if valid or refreshable authentication exists
func (a *FakturoGoogleAuth) IsAuthenticated() bool {
	token, err := a.loadToken()
	if err != nil || token == nil {
		return false
	}
	return token.Valid() || token.RefreshToken != ""
}
