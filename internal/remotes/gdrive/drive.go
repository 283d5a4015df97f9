// Package gdrive implements the Google Drive remote backend for Fakturo
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fakturo/fakturo/internal/store"
	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/fakturo/fakturo/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	backendName = "google-drive"

	mimeTypeFolder = "application/vnd.google-apps.folder"
	mimeTypeJSON   = "application/json"

	// appProperties key carrying the content hash used to skip
	// uploads of unchanged objects
	propContentHash = "fakturoHash"
	// appProperties key carrying the entity id, for diagnostics
	propEntityID = "fakturoId"

	// Concurrent per-entity transfers within one UploadAll
	uploadWorkers = 4

	listPageSize = 100
)

// Config holds Google Drive backend configuration
type Config struct {
	CredentialsFile string `json:"credentials_file"`
	TokenFile       string `json:"token_file"`
	RootFolderName  string `json:"root_folder_name"`
}

// FakturoDriveRemote implements interfaces.RemoteStore against Google
// Drive. The remote folder tree mirrors the local layout: a root folder
// holding type-named subfolders, invoices partitioned by year, singletons
// as files directly under the root.
//
// Folder resolution is findOrCreate with a per-instance result cache so
// concurrent uploads of sibling entities converge on a single folder
// instead of racing duplicate creations.
type FakturoDriveRemote struct {
	service *drive.Service
	config  *Config
	logger  *zap.Logger

	folderMu    sync.Mutex
	folderCache map[string]string // "parentID/name" -> folderID
}

// NewFakturoDriveRemote creates a Drive backend around an authenticated
// Drive service
func NewFakturoDriveRemote(service *drive.Service, config *Config) (*FakturoDriveRemote, error) {
	if config == nil {
		return nil, fkerrors.NewConfigError("Google Drive configuration is required", nil)
	}
	if config.RootFolderName == "" {
		config.RootFolderName = "Fakturo"
	}

	return &FakturoDriveRemote{
		service:     service,
		config:      config,
		logger:      fklogger.Get().With(zap.String("component", "drive_remote")),
		folderCache: make(map[string]string),
	}, nil
}

// Name returns the backend name
func (r *FakturoDriveRemote) Name() string {
	return backendName
}

// IsConfigured reports whether credentials and a token file exist
func (r *FakturoDriveRemote) IsConfigured() bool {
	if r.config.CredentialsFile == "" || r.config.TokenFile == "" {
		return false
	}
	if _, err := os.Stat(r.config.CredentialsFile); err != nil {
		return false
	}
	if _, err := os.Stat(r.config.TokenFile); err != nil {
		return false
	}
	return true
}

// IsAuthenticated probes the Drive account with a minimal About call
func (r *FakturoDriveRemote) IsAuthenticated(ctx context.Context) bool {
	if r.service == nil {
		return false
	}
	_, err := r.service.About.Get().Fields("user").Context(ctx).Do()
	return err == nil
}

// DownloadAll fetches the full remote snapshot. Tombstoned records are
// filtered out at this boundary by convention.
func (r *FakturoDriveRemote) DownloadAll(ctx context.Context) (*models.DataSet, error) {
	data := &models.DataSet{}

	rootID, err := r.findFolder(ctx, "root", r.config.RootFolderName)
	if err != nil {
		return nil, err
	}
	if rootID == "" {
		// Nothing mirrored yet
		return data, nil
	}

	for _, entityType := range models.CollectionTypes {
		entities, err := r.downloadCollection(ctx, rootID, entityType)
		if err != nil {
			return nil, err
		}
		data.SetCollection(entityType, entities)
	}

	data.CompanyInfo, err = r.downloadSingleton(ctx, rootID, models.EntityCompanyInfo)
	if err != nil {
		return nil, err
	}
	data.TaxSettings, err = r.downloadSingleton(ctx, rootID, models.EntityTaxSettings)
	if err != nil {
		return nil, err
	}

	data.Timesheets, err = r.downloadTimesheets(ctx, rootID)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// UploadAll pushes a full snapshot and returns the number of objects
// actually transmitted. Objects whose content hash matches the hash
// recorded on the remote copy are skipped. Per-item failures are logged
// and excluded from the count; they never abort the batch.
func (r *FakturoDriveRemote) UploadAll(ctx context.Context, data *models.DataSet) (int, error) {
	rootID, err := r.findOrCreateFolder(ctx, "root", r.config.RootFolderName)
	if err != nil {
		return 0, err
	}

	type job struct {
		entityType models.EntityType
		entity     models.Entity
	}

	var jobs []job
	for _, entityType := range models.CollectionTypes {
		for _, entity := range data.Collection(entityType) {
			jobs = append(jobs, job{entityType, entity})
		}
	}
	if data.CompanyInfo != nil {
		jobs = append(jobs, job{models.EntityCompanyInfo, data.CompanyInfo})
	}
	if data.TaxSettings != nil {
		jobs = append(jobs, job{models.EntityTaxSettings, data.TaxSettings})
	}

	var (
		mu       sync.Mutex
		uploaded int
		wg       sync.WaitGroup
		sem      = make(chan struct{}, uploadWorkers)
	)

	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			sent, err := r.uploadEntity(ctx, rootID, j.entityType, j.entity)
			if err != nil {
				r.logger.Warn("Failed to upload entity",
					zap.String("entity_type", string(j.entityType)),
					zap.String("id", j.entity.ID()),
					zap.Error(err),
				)
				return
			}
			if sent {
				mu.Lock()
				uploaded++
				mu.Unlock()
			}
		}(j)
	}
	wg.Wait()

	for _, file := range data.Timesheets {
		sent, err := r.uploadTimesheet(ctx, rootID, file)
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
func (r *FakturoDriveRemote) Upload(ctx context.Context, entityType models.EntityType, entity models.Entity) error {
	rootID, err := r.findOrCreateFolder(ctx, "root", r.config.RootFolderName)
	if err != nil {
		return err
	}
	_, err = r.uploadEntity(ctx, rootID, entityType, entity)
	return err
}

// UploadTimesheet pushes a single spreadsheet blob as-is
func (r *FakturoDriveRemote) UploadTimesheet(ctx context.Context, file models.TimesheetFile) error {
	rootID, err := r.findOrCreateFolder(ctx, "root", r.config.RootFolderName)
	if err != nil {
		return err
	}
	_, err = r.uploadTimesheet(ctx, rootID, file)
	return err
}

// CleanupDuplicateFolders reconciles duplicate folders left behind by
// creation races that predate the folder cache. Only empty duplicates are
// deleted; a folder with any children is never touched. Returns the
// number of folders removed.
func (r *FakturoDriveRemote) CleanupDuplicateFolders(ctx context.Context) (int, error) {
	rootID, err := r.findFolder(ctx, "root", r.config.RootFolderName)
	if err != nil || rootID == "" {
		return 0, err
	}

	deleted := 0
	// Walk the tree breadth-first from the root folder
	queue := []string{rootID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		folders, err := r.listFolders(ctx, parentID)
		if err != nil {
			return deleted, err
		}

		byName := make(map[string][]*drive.File)
		for _, folder := range folders {
			byName[folder.Name] = append(byName[folder.Name], folder)
		}

		for _, group := range byName {
			// The oldest folder survives; empty younger twins go
			queue = append(queue, group[0].Id)
			for _, dup := range group[1:] {
				empty, err := r.isFolderEmpty(ctx, dup.Id)
				if err != nil {
					r.logger.Warn("Failed to inspect duplicate folder",
						zap.String("id", dup.Id),
						zap.Error(err),
					)
					continue
				}
				if !empty {
					queue = append(queue, dup.Id)
					continue
				}
				if err := r.service.Files.Delete(dup.Id).Context(ctx).Do(); err != nil {
					r.logger.Warn("Failed to delete duplicate folder",
						zap.String("id", dup.Id),
						zap.Error(err),
					)
					continue
				}
				deleted++
				r.logger.Info("Deleted empty duplicate folder",
					zap.String("name", dup.Name),
					zap.String("id", dup.Id),
				)
			}
		}
	}

	return deleted, nil
}

// --- collection transfer ---

func (r *FakturoDriveRemote) downloadCollection(ctx context.Context, rootID string, entityType models.EntityType) ([]models.Entity, error) {
	folderID, err := r.findFolder(ctx, rootID, string(entityType))
	if err != nil || folderID == "" {
		return nil, err
	}

	// Invoices have an extra year level
	folderIDs := []string{folderID}
	if entityType == models.EntityInvoices {
		years, err := r.listFolders(ctx, folderID)
		if err != nil {
			return nil, err
		}
		folderIDs = folderIDs[:0]
		for _, year := range years {
			folderIDs = append(folderIDs, year.Id)
		}
	}

	var entities []models.Entity
	for _, id := range folderIDs {
		files, err := r.listFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if !strings.HasSuffix(file.Name, ".json") {
				continue
			}
			entity, err := r.downloadEntityFile(ctx, file.Id)
			if err != nil {
				r.logger.Warn("Skipping unreadable remote entity",
					zap.String("name", file.Name),
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

func (r *FakturoDriveRemote) downloadSingleton(ctx context.Context, rootID string, entityType models.EntityType) (models.Entity, error) {
	file, err := r.findFile(ctx, rootID, string(entityType)+".json")
	if err != nil || file == nil {
		return nil, err
	}
	entity, err := r.downloadEntityFile(ctx, file.Id)
	if err != nil {
		return nil, err
	}
	if entity.IsDeleted() {
		return nil, nil
	}
	return entity, nil
}

func (r *FakturoDriveRemote) downloadTimesheets(ctx context.Context, rootID string) ([]models.TimesheetFile, error) {
	folderID, err := r.findFolder(ctx, rootID, string(models.EntityTimesheets))
	if err != nil || folderID == "" {
		return nil, err
	}

	files, err := r.listFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var sheets []models.TimesheetFile
	for _, file := range files {
		content, err := r.downloadContent(ctx, file.Id)
		if err != nil {
			r.logger.Warn("Skipping unreadable remote timesheet",
				zap.String("name", file.Name),
				zap.Error(err),
			)
			continue
		}
		modified, _ := time.Parse(time.RFC3339, file.ModifiedTime)
		sheets = append(sheets, models.TimesheetFile{
			Name:     file.Name,
			Content:  content,
			Modified: modified,
		})
	}
	return sheets, nil
}

// uploadEntity writes one entity into its folder, skipping the transfer
// when the remote copy already carries the same content hash. Returns
// whether bytes were actually transmitted.
func (r *FakturoDriveRemote) uploadEntity(ctx context.Context, rootID string, entityType models.EntityType, entity models.Entity) (bool, error) {
	folderID := rootID
	var err error

	switch entityType {
	case models.EntityCompanyInfo, models.EntityTaxSettings:
		// Singletons live directly under the root folder
	case models.EntityInvoices:
		folderID, err = r.findOrCreateFolder(ctx, rootID, string(entityType))
		if err != nil {
			return false, err
		}
		folderID, err = r.findOrCreateFolder(ctx, folderID, store.InvoiceYear(entity, time.Now))
		if err != nil {
			return false, err
		}
	default:
		folderID, err = r.findOrCreateFolder(ctx, rootID, string(entityType))
		if err != nil {
			return false, err
		}
	}

	existing, err := r.findEntityFile(ctx, folderID, entityType, entity)
	if err != nil {
		return false, err
	}

	hash := utils.ContentHash(entity)
	if existing != nil && existing.AppProperties[propContentHash] == hash {
		return false, nil
	}

	payload, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return false, fkerrors.NewValidationError("failed to marshal entity", err)
	}

	props := map[string]string{
		propContentHash: hash,
		propEntityID:    entity.ID(),
	}

	if existing != nil {
		update := &drive.File{AppProperties: props}
		_, err = r.service.Files.Update(existing.Id, update).
			Media(strings.NewReader(string(payload))).
			Context(ctx).Do()
	} else {
		create := &drive.File{
			Name:          remoteFileName(entityType, entity),
			Parents:       []string{folderID},
			MimeType:      mimeTypeJSON,
			AppProperties: props,
		}
		_, err = r.service.Files.Create(create).
			Media(strings.NewReader(string(payload))).
			Fields("id").
			Context(ctx).Do()
	}
	if err != nil {
		return false, fkerrors.NewRemoteError("drive upload failed", err)
	}
	return true, nil
}

func (r *FakturoDriveRemote) uploadTimesheet(ctx context.Context, rootID string, file models.TimesheetFile) (bool, error) {
	folderID, err := r.findOrCreateFolder(ctx, rootID, string(models.EntityTimesheets))
	if err != nil {
		return false, err
	}

	existing, err := r.findFile(ctx, folderID, file.Name)
	if err != nil {
		return false, err
	}

	hash := utils.BytesHash(file.Content)
	if existing != nil && existing.AppProperties[propContentHash] == hash {
		return false, nil
	}

	props := map[string]string{propContentHash: hash}
	meta := &drive.File{AppProperties: props}
	if !file.Modified.IsZero() {
		meta.ModifiedTime = file.Modified.UTC().Format(time.RFC3339)
	}

	if existing != nil {
		_, err = r.service.Files.Update(existing.Id, meta).
			Media(strings.NewReader(string(file.Content))).
			Context(ctx).Do()
	} else {
		meta.Name = file.Name
		meta.Parents = []string{folderID}
		_, err = r.service.Files.Create(meta).
			Media(strings.NewReader(string(file.Content))).
			Fields("id").
			Context(ctx).Do()
	}
	if err != nil {
		return false, fkerrors.NewRemoteError("drive timesheet upload failed", err)
	}
	return true, nil
}

// --- folder and file lookup ---

// findEntityFile performs the two-step lookup: the new deterministic
// naming convention first, then the legacy id-based name, for
// compatibility with remote trees written by older versions
func (r *FakturoDriveRemote) findEntityFile(ctx context.Context, folderID string, entityType models.EntityType, entity models.Entity) (*drive.File, error) {
	file, err := r.findFile(ctx, folderID, remoteFileName(entityType, entity))
	if err != nil || file != nil {
		return file, err
	}
	return r.findFile(ctx, folderID, entity.ID()+".json")
}

// findFolder returns the id of a folder under parent, or "" when absent
func (r *FakturoDriveRemote) findFolder(ctx context.Context, parentID, name string) (string, error) {
	r.folderMu.Lock()
	if id, ok := r.folderCache[parentID+"/"+name]; ok {
		r.folderMu.Unlock()
		return id, nil
	}
	r.folderMu.Unlock()

	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), parentID, mimeTypeFolder)
	result, err := r.service.Files.List().
		Q(query).
		Fields("files(id, name, createdTime)").
		OrderBy("createdTime").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", fkerrors.NewRemoteError("drive folder lookup failed", err)
	}
	if len(result.Files) == 0 {
		return "", nil
	}

	id := result.Files[0].Id
	r.cacheFolder(parentID, name, id)
	return id, nil
}

// findOrCreateFolder resolves a folder, creating it when missing. The
// cache makes repeated resolution idempotent within this instance;
// ordering by createdTime makes concurrent instances converge on the
// oldest folder once it is visible.
func (r *FakturoDriveRemote) findOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	id, err := r.findFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: mimeTypeFolder,
		Parents:  []string{parentID},
	}
	created, err := r.service.Files.Create(folder).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return "", fkerrors.NewRemoteError(fmt.Sprintf("failed to create folder %s", name), err)
	}

	r.cacheFolder(parentID, name, created.Id)
	r.logger.Debug("Created remote folder", zap.String("name", name))
	return created.Id, nil
}

func (r *FakturoDriveRemote) cacheFolder(parentID, name, id string) {
	r.folderMu.Lock()
	r.folderCache[parentID+"/"+name] = id
	r.folderMu.Unlock()
}

func (r *FakturoDriveRemote) findFile(ctx context.Context, folderID, name string) (*drive.File, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType != '%s' and trashed = false",
		escapeQuery(name), folderID, mimeTypeFolder)
	result, err := r.service.Files.List().
		Q(query).
		Fields("files(id, name, modifiedTime, appProperties)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return nil, fkerrors.NewRemoteError("drive file lookup failed", err)
	}
	if len(result.Files) == 0 {
		return nil, nil
	}
	return result.Files[0], nil
}

func (r *FakturoDriveRemote) listFolders(ctx context.Context, parentID string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", parentID, mimeTypeFolder)
	return r.listAll(ctx, query, "files(id, name, createdTime)")
}

func (r *FakturoDriveRemote) listFiles(ctx context.Context, parentID string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", parentID, mimeTypeFolder)
	return r.listAll(ctx, query, "files(id, name, modifiedTime, appProperties)")
}

func (r *FakturoDriveRemote) listAll(ctx context.Context, query, fields string) ([]*drive.File, error) {
	var files []*drive.File
	pageToken := ""
	for {
		call := r.service.Files.List().
			Q(query).
			Fields("nextPageToken", googleapi.Field(fields)).
			OrderBy("createdTime").
			PageSize(listPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fkerrors.NewRemoteError("drive list failed", err)
		}
		files = append(files, result.Files...)

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return files, nil
}

func (r *FakturoDriveRemote) isFolderEmpty(ctx context.Context, folderID string) (bool, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	result, err := r.service.Files.List().
		Q(query).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return false, err
	}
	return len(result.Files) == 0, nil
}

func (r *FakturoDriveRemote) downloadEntityFile(ctx context.Context, fileID string) (models.Entity, error) {
	content, err := r.downloadContent(ctx, fileID)
	if err != nil {
		return nil, err
	}
	var entity models.Entity
	if err := json.Unmarshal(content, &entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *FakturoDriveRemote) downloadContent(ctx context.Context, fileID string) ([]byte, error) {
	response, err := r.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	return io.ReadAll(response.Body)
}

// --- naming ---

// remoteFileName mirrors the local on-disk naming convention so that a
// human browsing the Drive folder sees the same file names
func remoteFileName(entityType models.EntityType, entity models.Entity) string {
	switch entityType {
	case models.EntityCompanyInfo, models.EntityTaxSettings:
		return string(entityType) + ".json"
	}
	return store.FileNameFor(entityType, entity) + ".json"
}

// escapeQuery escapes a string literal for the Drive v2/v3 query language.
// Backslashes must go first or the quote escape would be double-escaped.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
