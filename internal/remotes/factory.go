// Package remotes constructs the configured remote backend
package remotes

import (
	"context"

	"github.com/fakturo/fakturo/internal/auth/google"
	"github.com/fakturo/fakturo/internal/core/interfaces"
	"github.com/fakturo/fakturo/internal/remotes/gdrive"
	"github.com/fakturo/fakturo/internal/remotes/webdav"
	"github.com/fakturo/fakturo/pkg/errors"
	"github.com/fakturo/fakturo/pkg/models"
)

// Config selects and configures a remote backend
type Config struct {
	DataSource models.DataSource
	Drive      *gdrive.Config
	WebDAV     *webdav.Config
}

// New builds the RemoteStore named by cfg.DataSource. The Drive backend
// requires a previously stored OAuth token; run the auth command first.
func New(ctx context.Context, cfg *Config) (interfaces.RemoteStore, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("remote configuration is required", nil)
	}

	switch cfg.DataSource {
	case models.DataSourceDrive:
		return newDriveRemote(ctx, cfg.Drive)
	case models.DataSourceWebDAV:
		return webdav.NewFakturoWebDAVRemote(cfg.WebDAV)
	case models.DataSourceNone:
		return nil, errors.NewPreconditionError("no data source selected", nil)
	default:
		return nil, errors.NewConfigError("unknown data source: "+string(cfg.DataSource), nil)
	}
}

func newDriveRemote(ctx context.Context, cfg *gdrive.Config) (interfaces.RemoteStore, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("Google Drive configuration is required", nil)
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = google.GetDefaultCredentialsPath()
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = google.GetDefaultTokenPath()
	}

	creds, err := google.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	auth, err := google.NewFakturoGoogleAuth(&google.OAuthConfig{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}, cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	service, err := auth.GetDriveService(ctx)
	if err != nil {
		return nil, err
	}

	return gdrive.NewFakturoDriveRemote(service, cfg)
}
