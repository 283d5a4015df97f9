package cli

import (
	"context"
	"fmt"

	"github.com/fakturo/fakturo/internal/core/interfaces"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/database/repositories"
	"github.com/fakturo/fakturo/internal/remotes"
	"github.com/fakturo/fakturo/internal/remotes/gdrive"
	"github.com/fakturo/fakturo/internal/remotes/webdav"
	"github.com/fakturo/fakturo/internal/store"
	"github.com/fakturo/fakturo/internal/sync"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/spf13/viper"
)

// components bundles everything a command needs to run sync operations
type components struct {
	db        *database.Manager
	state     interfaces.StateStore
	conflicts interfaces.ConflictLog
	local     interfaces.LocalStore
	remote    interfaces.RemoteStore
	engine    *sync.FakturoSyncEngine
}

// buildComponents wires the engine from configuration. Callers must
// invoke close when done.
func buildComponents(ctx context.Context) (*components, func(), error) {
	db, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}

	stateRepo := repositories.NewStateRepository(db, fklogger.Get())
	conflictRepo := repositories.NewConflictRepository(db)

	remote, err := buildRemote(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	local := store.NewFileStore(viper.GetString("data.dir"))
	if err := local.EnsureLayout(); err != nil {
		db.Close()
		return nil, nil, err
	}

	engine, err := sync.NewFakturoSyncEngine(remote, local, stateRepo, conflictRepo, sync.NewEventBus(), nil)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	c := &components{
		db:        db,
		state:     stateRepo,
		conflicts: conflictRepo,
		local:     local,
		remote:    remote,
		engine:    engine,
	}
	return c, func() { db.Close() }, nil
}

// openDatabase opens the state database at the configured path
func openDatabase() (*database.Manager, error) {
	options := database.DefaultOptions()
	if path := viper.GetString("database.path"); path != "" {
		options.Path = path
	}

	db, err := database.NewManager(options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// buildRemote constructs the backend selected in configuration
func buildRemote(ctx context.Context) (interfaces.RemoteStore, error) {
	return remotes.New(ctx, &remotes.Config{
		DataSource: models.DataSource(viper.GetString("sync.data_source")),
		Drive: &gdrive.Config{
			CredentialsFile: viper.GetString("drive.credentials_file"),
			TokenFile:       viper.GetString("drive.token_file"),
			RootFolderName:  viper.GetString("drive.root_folder"),
		},
		WebDAV: &webdav.Config{
			URL:      viper.GetString("webdav.url"),
			Username: viper.GetString("webdav.username"),
			Password: viper.GetString("webdav.password"),
			RootPath: viper.GetString("webdav.root_path"),
		},
	})
}
