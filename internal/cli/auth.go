package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fakturo/fakturo/internal/auth/google"
	"github.com/fakturo/fakturo/internal/database/repositories"
	"github.com/fakturo/fakturo/internal/remotes/webdav"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage backend authentication",
	Long: `Authenticate with a sync backend and select it as the data source.

Successful authentication marks the backend as the selected data source,
which arms scheduled syncing once sync is enabled.`,
}

var authGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Authenticate with Google Drive",
	Long: `Authenticate with Google Drive using OAuth2.

Requires an OAuth client credentials file (downloaded from the Google
Cloud console). The browser-based consent flow stores a refresh token
locally; no password ever touches this machine.`,
	RunE: runAuthGoogle,
}

var authWebDAVCmd = &cobra.Command{
	Use:   "webdav",
	Short: "Connect to a WebDAV server",
	RunE:  runAuthWebDAV,
}

var authRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke stored credentials and deselect the data source",
	RunE:  runAuthRevoke,
}

func init() {
	authGoogleCmd.Flags().String("credentials", "", "Path to OAuth client credentials JSON")
	authWebDAVCmd.Flags().String("url", "", "WebDAV server URL")
	authWebDAVCmd.Flags().String("username", "", "WebDAV username")
	authWebDAVCmd.Flags().String("password", "", "WebDAV password")
	authWebDAVCmd.MarkFlagRequired("url")
	authWebDAVCmd.MarkFlagRequired("username")

	authCmd.AddCommand(authGoogleCmd)
	authCmd.AddCommand(authWebDAVCmd)
	authCmd.AddCommand(authRevokeCmd)
}

func runAuthGoogle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	credentialsPath, _ := cmd.Flags().GetString("credentials")
	if credentialsPath == "" {
		credentialsPath = viper.GetString("drive.credentials_file")
	}
	if credentialsPath == "" {
		credentialsPath = google.GetDefaultCredentialsPath()
	}

	creds, err := google.LoadCredentials(credentialsPath)
	if err != nil {
		fmt.Println("⚠️  No OAuth credentials found!")
		fmt.Println("   Download an OAuth client JSON from the Google Cloud console and pass it")
		fmt.Println("   with --credentials, or place it at", google.GetDefaultCredentialsPath())
		return err
	}

	// Keep a copy at the default location so later runs find it
	if credentialsPath != google.GetDefaultCredentialsPath() {
		if err := google.SaveCredentials(google.GetDefaultCredentialsPath(), creds); err != nil {
			return err
		}
	}

	tokenFile := viper.GetString("drive.token_file")
	if tokenFile == "" {
		tokenFile = google.GetDefaultTokenPath()
	}

	auth, err := google.NewFakturoGoogleAuth(&google.OAuthConfig{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}, tokenFile)
	if err != nil {
		return err
	}

	fmt.Println("🔐 Starting Google Drive authentication...")
	if _, err := auth.Authenticate(ctx); err != nil {
		return err
	}

	if err := selectDataSource(ctx, models.DataSourceDrive); err != nil {
		return err
	}

	fmt.Println("✅ Google Drive connected and selected as data source")
	return nil
}

func runAuthWebDAV(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	url, _ := cmd.Flags().GetString("url")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	remote, err := webdav.NewFakturoWebDAVRemote(&webdav.Config{
		URL:      url,
		Username: username,
		Password: password,
		RootPath: viper.GetString("webdav.root_path"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("🔐 Probing %s...\n", url)
	if !remote.IsAuthenticated(ctx) {
		return fmt.Errorf("could not authenticate against %s", url)
	}

	viper.Set("webdav.url", url)
	viper.Set("webdav.username", username)
	viper.Set("webdav.password", password)
	viper.Set("sync.data_source", string(models.DataSourceWebDAV))
	if err := writeConfig(); err != nil {
		return err
	}

	if err := selectDataSource(ctx, models.DataSourceWebDAV); err != nil {
		return err
	}

	fmt.Println("✅ WebDAV server connected and selected as data source")
	return nil
}

func runAuthRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	source := models.DataSource(viper.GetString("sync.data_source"))
	if source == models.DataSourceDrive {
		tokenFile := viper.GetString("drive.token_file")
		if tokenFile == "" {
			tokenFile = google.GetDefaultTokenPath()
		}
		creds, err := google.LoadCredentials(google.GetDefaultCredentialsPath())
		if err == nil {
			auth, err := google.NewFakturoGoogleAuth(&google.OAuthConfig{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
			}, tokenFile)
			if err == nil {
				if err := auth.RevokeToken(); err != nil {
					fmt.Printf("⚠️  Token revocation failed: %v\n", err)
				}
			}
		}
	}

	viper.Set("sync.data_source", "")
	if err := writeConfig(); err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	state := repositories.NewStateRepository(db, fklogger.Get())
	state.Update(ctx, func(s *models.SyncState) {
		s.DataSourceSelected = false
		s.DataSource = models.DataSourceNone
		s.SyncEnabled = false
	})

	fmt.Println("✅ Credentials revoked, data source deselected")
	return nil
}

// selectDataSource records the chosen backend in config and state
func selectDataSource(ctx context.Context, source models.DataSource) error {
	viper.Set("sync.data_source", string(source))
	if err := writeConfig(); err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	state := repositories.NewStateRepository(db, fklogger.Get())
	state.Update(ctx, func(s *models.SyncState) {
		s.DataSourceSelected = true
		s.DataSource = source
	})
	return nil
}

// writeConfig persists the current viper settings to the config file
func writeConfig() error {
	if used := viper.ConfigFileUsed(); used != "" {
		return viper.WriteConfig()
	}
	return viper.WriteConfigAs(filepath.Join(fakturoDir(), "config.yaml"))
}
