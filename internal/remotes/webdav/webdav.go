// Package webdav implements the WebDAV remote backend for Fakturo
package webdav

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/fakturo/fakturo/internal/store"
	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/fakturo/fakturo/pkg/utils"
	"github.com/studio-b12/gowebdav"
	"go.uber.org/zap"
)

const backendName = "webdav"

// Config holds WebDAV backend configuration
type Config struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	RootPath string `json:"root_path"`
}

// FakturoWebDAVRemote implements interfaces.RemoteStore against any
// WebDAV server (Nextcloud, ownCloud, plain Apache mod_dav). The remote
// tree under RootPath mirrors the local layout exactly.
//
// WebDAV has no side-channel metadata comparable to Drive appProperties,
// so unchanged-upload detection reads the existing object and compares
// content hashes. The extra download is cheaper than a write on servers
// that version every PUT.
type FakturoWebDAVRemote struct {
	client *gowebdav.Client
	config *Config
	logger *zap.Logger
}

// NewFakturoWebDAVRemote creates a WebDAV backend
func NewFakturoWebDAVRemote(config *Config) (*FakturoWebDAVRemote, error) {
	if config == nil {
		return nil, fkerrors.NewConfigError("WebDAV configuration is required", nil)
	}
	if config.URL == "" {
		return nil, fkerrors.NewConfigError("WebDAV URL is required", nil)
	}
	if config.RootPath == "" {
		config.RootPath = "/Fakturo"
	}

	client := gowebdav.NewClient(config.URL, config.Username, config.Password)
	client.SetTimeout(30 * time.Second)

	return &FakturoWebDAVRemote{
		client: client,
		config: config,
		logger: fklogger.Get().With(zap.String("component", "webdav_remote")),
	}, nil
}

// Name returns the backend name
func (r *FakturoWebDAVRemote) Name() string {
	return backendName
}

// IsConfigured reports whether the connection settings are present
func (r *FakturoWebDAVRemote) IsConfigured() bool {
	return r.config.URL != "" && r.config.Username != ""
}

// IsAuthenticated probes the server with a PROPFIND on the root
func (r *FakturoWebDAVRemote) IsAuthenticated(ctx context.Context) bool {
	return r.client.Connect() == nil
}

// DownloadAll fetches the full remote snapshot. Tombstoned records are
// filtered out at this boundary by convention.
func (r *FakturoWebDAVRemote) DownloadAll(ctx context.Context) (*models.DataSet, error) {
	data := &models.DataSet{}

	if _, err := r.client.Stat(r.config.RootPath); err != nil {
		if isNotFound(err) {
			// Nothing mirrored yet
			return data, nil
		}
		return nil, fkerrors.NewRemoteError("webdav stat failed", err)
	}

	for _, entityType := range models.CollectionTypes {
		entities, err := r.downloadCollection(ctx, entityType)
		if err != nil {
			return nil, err
		}
		data.SetCollection(entityType, entities)
	}

	var err error
	data.CompanyInfo, err = r.downloadSingleton(models.EntityCompanyInfo)
	if err != nil {
		return nil, err
	}
	data.TaxSettings, err = r.downloadSingleton(models.EntityTaxSettings)
	if err != nil {
		return nil, err
	}

	data.Timesheets, err = r.downloadTimesheets()
	if err != nil {
		return nil, err
	}

	return data, nil
}

// UploadAll pushes a full snapshot and returns the number of objects
// actually transmitted. Per-item failures are logged and excluded from
// the count; they never abort the batch.
func (r *FakturoWebDAVRemote) UploadAll(ctx context.Context, data *models.DataSet) (int, error) {
	if err := r.client.MkdirAll(r.config.RootPath, 0755); err != nil {
		return 0, fkerrors.NewRemoteError("failed to create remote root", err)
	}

	uploaded := 0
	for _, entityType := range models.CollectionTypes {
		for _, entity := range data.Collection(entityType) {
			sent, err := r.uploadEntity(entityType, entity)
			if err != nil {
				r.logger.Warn("Failed to upload entity",
					zap.String("entity_type", string(entityType)),
					zap.String("id", entity.ID()),
					zap.Error(err),
				)
				continue
			}
			if sent {
				uploaded++
			}
		}
	}

	for _, singleton := range []struct {
		entityType models.EntityType
		entity     models.Entity
	}{
		{models.EntityCompanyInfo, data.CompanyInfo},
		{models.EntityTaxSettings, data.TaxSettings},
	} {
		if singleton.entity == nil {
			continue
		}
		sent, err := r.uploadEntity(singleton.entityType, singleton.entity)
		if err != nil {
			r.logger.Warn("Failed to upload singleton",
				zap.String("entity_type", string(singleton.entityType)),
				zap.Error(err),
			)
			continue
		}
		if sent {
			uploaded++
		}
	}

	for _, file := range data.Timesheets {
		sent, err := r.uploadTimesheetFile(file)
		if err != nil {
			r.logger.Warn("Failed to upload timesheet",
				zap.String("name", file.Name),
				zap.Error(err),
			)
			continue
		}
		if sent {
			uploaded++
		}
	}

	return uploaded, nil
}

// Upload pushes a single entity outside the periodic cycle
func (r *FakturoWebDAVRemote) Upload(ctx context.Context, entityType models.EntityType, entity models.Entity) error {
	_, err := r.uploadEntity(entityType, entity)
	return err
}

// UploadTimesheet pushes a single spreadsheet blob as-is
func (r *FakturoWebDAVRemote) UploadTimesheet(ctx context.Context, file models.TimesheetFile) error {
	_, err := r.uploadTimesheetFile(file)
	return err
}

// CleanupDuplicateFolders is a no-op on WebDAV. The protocol enforces
// unique names within a collection, so duplicate folders cannot exist.
func (r *FakturoWebDAVRemote) CleanupDuplicateFolders(ctx context.Context) (int, error) {
	return 0, nil
}

// --- collection transfer ---

func (r *FakturoWebDAVRemote) downloadCollection(ctx context.Context, entityType models.EntityType) ([]models.Entity, error) {
	base := path.Join(r.config.RootPath, string(entityType))

	dirs := []string{base}
	if entityType == models.EntityInvoices {
		years, err := r.listDirs(base)
		if err != nil {
			return nil, err
		}
		dirs = years
	}

	var entities []models.Entity
	for _, dir := range dirs {
		infos, err := r.client.ReadDir(dir)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fkerrors.NewRemoteError("webdav list failed", err)
		}
		for _, info := range infos {
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
				continue
			}
			entity, err := r.readEntity(path.Join(dir, info.Name()))
			if err != nil {
				r.logger.Warn("Skipping unreadable remote entity",
					zap.String("path", path.Join(dir, info.Name())),
					zap.Error(err),
				)
				continue
			}
			if entity.IsDeleted() {
				continue
			}
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (r *FakturoWebDAVRemote) downloadSingleton(entityType models.EntityType) (models.Entity, error) {
	remotePath := path.Join(r.config.RootPath, string(entityType)+".json")
	entity, err := r.readEntity(remotePath)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if entity.IsDeleted() {
		return nil, nil
	}
	return entity, nil
}

func (r *FakturoWebDAVRemote) downloadTimesheets() ([]models.TimesheetFile, error) {
	dir := path.Join(r.config.RootPath, string(models.EntityTimesheets))
	infos, err := r.client.ReadDir(dir)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fkerrors.NewRemoteError("webdav list failed", err)
	}

	var sheets []models.TimesheetFile
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		content, err := r.client.Read(path.Join(dir, info.Name()))
		if err != nil {
			r.logger.Warn("Skipping unreadable remote timesheet",
				zap.String("name", info.Name()),
				zap.Error(err),
			)
			continue
		}
		sheets = append(sheets, models.TimesheetFile{
			Name:     info.Name(),
			Content:  content,
			Modified: info.ModTime(),
		})
	}
	return sheets, nil
}

// uploadEntity writes one entity at its mirrored path, skipping the
// transfer when the existing remote copy hashes identically. Returns
// whether bytes were actually transmitted.
func (r *FakturoWebDAVRemote) uploadEntity(entityType models.EntityType, entity models.Entity) (bool, error) {
	remotePath, err := r.entityPath(entityType, entity)
	if err != nil {
		return false, err
	}

	if existing, err := r.client.Read(remotePath); err == nil {
		var current models.Entity
		if json.Unmarshal(existing, &current) == nil &&
			utils.ContentHash(current) == utils.ContentHash(entity) {
			return false, nil
		}
	}

	payload, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return false, fkerrors.NewValidationError("failed to marshal entity", err)
	}

	if err := r.client.MkdirAll(path.Dir(remotePath), 0755); err != nil {
		return false, fkerrors.NewRemoteError("failed to create remote directory", err)
	}
	if err := r.client.Write(remotePath, payload, 0644); err != nil {
		return false, fkerrors.NewRemoteError("webdav upload failed", err)
	}
	return true, nil
}

func (r *FakturoWebDAVRemote) uploadTimesheetFile(file models.TimesheetFile) (bool, error) {
	dir := path.Join(r.config.RootPath, string(models.EntityTimesheets))
	remotePath := path.Join(dir, file.Name)

	if existing, err := r.client.Read(remotePath); err == nil {
		if utils.BytesHash(existing) == utils.BytesHash(file.Content) {
			return false, nil
		}
	}

	if err := r.client.MkdirAll(dir, 0755); err != nil {
		return false, fkerrors.NewRemoteError("failed to create remote directory", err)
	}
	if err := r.client.Write(remotePath, file.Content, 0644); err != nil {
		return false, fkerrors.NewRemoteError("webdav timesheet upload failed", err)
	}
	return true, nil
}

// entityPath resolves the remote path for an entity, preferring the
// deterministic naming convention but reusing a legacy id-named object
// when one already exists, so older trees keep a single copy per record
func (r *FakturoWebDAVRemote) entityPath(entityType models.EntityType, entity models.Entity) (string, error) {
	var dir string
	switch entityType {
	case models.EntityCompanyInfo, models.EntityTaxSettings:
		return path.Join(r.config.RootPath, string(entityType)+".json"), nil
	case models.EntityInvoices:
		dir = path.Join(r.config.RootPath, string(entityType), store.InvoiceYear(entity, time.Now))
	default:
		dir = path.Join(r.config.RootPath, string(entityType))
	}

	preferred := path.Join(dir, store.FileNameFor(entityType, entity)+".json")
	legacy := path.Join(dir, entity.ID()+".json")
	if preferred != legacy {
		if _, err := r.client.Stat(legacy); err == nil {
			if _, err := r.client.Stat(preferred); err != nil {
				return legacy, nil
			}
		}
	}
	return preferred, nil
}

// --- helpers ---

func (r *FakturoWebDAVRemote) readEntity(remotePath string) (models.Entity, error) {
	content, err := r.client.Read(remotePath)
	if err != nil {
		return nil, err
	}
	var entity models.Entity
	if err := json.Unmarshal(content, &entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *FakturoWebDAVRemote) listDirs(base string) ([]string, error) {
	infos, err := r.client.ReadDir(base)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fkerrors.NewRemoteError("webdav list failed", err)
	}
	var dirs []string
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, path.Join(base, info.Name()))
		}
	}
	return dirs, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return gowebdav.IsErrNotFound(err) || strings.Contains(err.Error(), "404")
}
