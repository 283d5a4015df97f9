// Package mock provides an in-memory RemoteStore for tests
package mock

import (
	"context"
	"sync"

	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/fakturo/fakturo/pkg/utils"
)

// FakturoMockRemote implements interfaces.RemoteStore entirely in
// memory. It keeps the full tombstone-inclusive set internally and
// filters deletions on download, matching the real backends, and skips
// uploads whose content hash matches the stored copy so tests can assert
// on the transmitted count.
type FakturoMockRemote struct {
	mu sync.Mutex

	entities   map[models.EntityType]map[string]models.Entity
	timesheets map[string]models.TimesheetFile

	Configured    bool
	Authenticated bool
	DownloadErr   error
	UploadErr     error

	DownloadCalls int
	UploadCalls   int
}

// NewFakturoMockRemote creates an empty mock remote that reports itself
// configured and authenticated
func NewFakturoMockRemote() *FakturoMockRemote {
	return &FakturoMockRemote{
		entities:      make(map[models.EntityType]map[string]models.Entity),
		timesheets:    make(map[string]models.TimesheetFile),
		Configured:    true,
		Authenticated: true,
	}
}

func (r *FakturoMockRemote) Name() string { return "mock" }

func (r *FakturoMockRemote) IsConfigured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Configured
}

func (r *FakturoMockRemote) IsAuthenticated(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Authenticated
}

func (r *FakturoMockRemote) DownloadAll(ctx context.Context) (*models.DataSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.DownloadCalls++
	if r.DownloadErr != nil {
		return nil, r.DownloadErr
	}

	data := &models.DataSet{}
	for entityType, byID := range r.entities {
		switch entityType {
		case models.EntityCompanyInfo:
			if e := byID[models.SingletonID(entityType)]; e != nil && !e.IsDeleted() {
				data.CompanyInfo = e.Clone()
			}
		case models.EntityTaxSettings:
			if e := byID[models.SingletonID(entityType)]; e != nil && !e.IsDeleted() {
				data.TaxSettings = e.Clone()
			}
		default:
			var entities []models.Entity
			for _, e := range byID {
				if e.IsDeleted() {
					continue
				}
				entities = append(entities, e.Clone())
			}
			data.SetCollection(entityType, entities)
		}
	}
	for _, file := range r.timesheets {
		clone := file
		clone.Content = append([]byte(nil), file.Content...)
		data.Timesheets = append(data.Timesheets, clone)
	}
	return data, nil
}

func (r *FakturoMockRemote) UploadAll(ctx context.Context, data *models.DataSet) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.UploadCalls++
	if r.UploadErr != nil {
		return 0, r.UploadErr
	}

	uploaded := 0
	for _, entityType := range models.CollectionTypes {
		for _, entity := range data.Collection(entityType) {
			if r.store(entityType, entity.ID(), entity) {
				uploaded++
			}
		}
	}
	if data.CompanyInfo != nil && r.store(models.EntityCompanyInfo, models.SingletonID(models.EntityCompanyInfo), data.CompanyInfo) {
		uploaded++
	}
	if data.TaxSettings != nil && r.store(models.EntityTaxSettings, models.SingletonID(models.EntityTaxSettings), data.TaxSettings) {
		uploaded++
	}

	for _, file := range data.Timesheets {
		existing, ok := r.timesheets[file.Name]
		if ok && utils.BytesHash(existing.Content) == utils.BytesHash(file.Content) {
			continue
		}
		clone := file
		clone.Content = append([]byte(nil), file.Content...)
		r.timesheets[file.Name] = clone
		uploaded++
	}
	return uploaded, nil
}

func (r *FakturoMockRemote) Upload(ctx context.Context, entityType models.EntityType, entity models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UploadErr != nil {
		return r.UploadErr
	}
	key := entity.ID()
	if entityType == models.EntityCompanyInfo || entityType == models.EntityTaxSettings {
		key = models.SingletonID(entityType)
	}
	r.store(entityType, key, entity)
	return nil
}

func (r *FakturoMockRemote) UploadTimesheet(ctx context.Context, file models.TimesheetFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UploadErr != nil {
		return r.UploadErr
	}
	clone := file
	clone.Content = append([]byte(nil), file.Content...)
	r.timesheets[file.Name] = clone
	return nil
}

func (r *FakturoMockRemote) CleanupDuplicateFolders(ctx context.Context) (int, error) {
	return 0, nil
}

// Seed places an entity into the mock's internal set, tombstones
// included, bypassing the hash skip. For test setup.
func (r *FakturoMockRemote) Seed(entityType models.EntityType, entity models.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entity.ID()
	if entityType == models.EntityCompanyInfo || entityType == models.EntityTaxSettings {
		key = models.SingletonID(entityType)
	}
	if r.entities[entityType] == nil {
		r.entities[entityType] = make(map[string]models.Entity)
	}
	r.entities[entityType][key] = entity.Clone()
}

// Stored returns the internally held copy of an entity, or nil. Unlike
// DownloadAll it does not filter tombstones, so tests can assert that a
// deletion reached the remote.
func (r *FakturoMockRemote) Stored(entityType models.EntityType, id string) models.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID := r.entities[entityType]
	if byID == nil {
		return nil
	}
	entity := byID[id]
	if entity == nil {
		return nil
	}
	return entity.Clone()
}

// store returns whether the write changed the stored copy
func (r *FakturoMockRemote) store(entityType models.EntityType, key string, entity models.Entity) bool {
	if r.entities[entityType] == nil {
		r.entities[entityType] = make(map[string]models.Entity)
	}
	if existing := r.entities[entityType][key]; existing != nil {
		if utils.ContentHash(existing) == utils.ContentHash(entity) {
			return false
		}
	}
	r.entities[entityType][key] = entity.Clone()
	return true
}

// Downloads returns how many times DownloadAll was called
func (r *FakturoMockRemote) Downloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.DownloadCalls
}

// Uploads returns how many times UploadAll was called
func (r *FakturoMockRemote) Uploads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.UploadCalls
}

// FailDownloads makes subsequent DownloadAll calls return a retryable
// network error
func (r *FakturoMockRemote) FailDownloads(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DownloadErr = fkerrors.NewNetworkError(message, nil)
}

// FailUploads makes subsequent upload calls return a retryable network
// error
func (r *FakturoMockRemote) FailUploads(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UploadErr = fkerrors.NewNetworkError(message, nil)
}

// Recover clears any injected failures
func (r *FakturoMockRemote) Recover() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DownloadErr = nil
	r.UploadErr = nil
}
