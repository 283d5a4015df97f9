// Package store implements the local file-per-entity data directory
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	fkerrors "github.com/fakturo/fakturo/pkg/errors"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"go.uber.org/zap"
)

const (
	jsonExt      = ".json"
	timesheetDir = "timesheets"
)

// FileStore implements interfaces.LocalStore over a user-selected data
// directory. One JSON file per entity in type-named subdirectories;
// invoices get an extra year level derived from the invoice date.
// Singletons live as single well-known files at the root.
type FileStore struct {
	root   string
	logger *zap.Logger
	clock  func() time.Time
}

// NewFileStore creates a store rooted at the given directory
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:   root,
		logger: fklogger.Get().With(zap.String("component", "local_store")),
		clock:  time.Now,
	}
}

// Root returns the data directory path
func (s *FileStore) Root() string {
	return s.root
}

// EnsureLayout creates the directory skeleton if missing
func (s *FileStore) EnsureLayout() error {
	dirs := []string{
		s.root,
		filepath.Join(s.root, string(models.EntityInvoices)),
		filepath.Join(s.root, string(models.EntityCustomers)),
		filepath.Join(s.root, string(models.EntityProducts)),
		filepath.Join(s.root, timesheetDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fkerrors.NewStorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}
	return nil
}

// LoadAll loads every record of a collection type, tombstones included
func (s *FileStore) LoadAll(ctx context.Context, entityType models.EntityType) ([]models.Entity, error) {
	dir := filepath.Join(s.root, string(entityType))

	var entities []models.Entity
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), jsonExt) {
			return nil
		}

		entity, err := s.readEntity(path)
		if err != nil {
			// One unreadable file must not hide the rest of the data
			s.logger.Warn("Skipping unreadable entity file",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil
		}
		entities = append(entities, entity)
		return nil
	})
	if err != nil {
		return nil, fkerrors.NewStorageError(fmt.Sprintf("failed to scan %s", dir), err)
	}

	return entities, nil
}

// LoadSingleton loads a singleton record, or nil when absent
func (s *FileStore) LoadSingleton(ctx context.Context, entityType models.EntityType) (models.Entity, error) {
	path := filepath.Join(s.root, string(entityType)+jsonExt)
	entity, err := s.readEntity(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fkerrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	return entity, nil
}

// SaveOne writes a record, tombstoned or not. An existing file for the
// same id is overwritten in place, so a renamed customer does not leave a
// duplicate behind under the new naming convention.
func (s *FileStore) SaveOne(ctx context.Context, entityType models.EntityType, entity models.Entity) error {
	if entity == nil {
		return fkerrors.NewValidationError("entity is nil", nil)
	}

	if entityType == models.EntityCompanyInfo || entityType == models.EntityTaxSettings {
		return s.writeEntity(filepath.Join(s.root, string(entityType)+jsonExt), entity)
	}

	if entity.ID() == "" {
		return fkerrors.NewValidationError("entity has no id", nil)
	}

	path, found := s.resolvePath(entityType, entity)
	if !found {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fkerrors.NewStorageError("failed to create entity directory", err)
		}
	}
	return s.writeEntity(path, entity)
}

// DeleteOne tombstones a record: the file is rewritten with isDeleted
// set and a fresh lastModified stamp, never removed, so the deletion can
// propagate to the remote replica.
func (s *FileStore) DeleteOne(ctx context.Context, entityType models.EntityType, id string) error {
	path, entity := s.findByID(entityType, id)
	if entity == nil {
		return fkerrors.NewStorageError(fmt.Sprintf("entity %s not found", id), os.ErrNotExist)
	}

	entity.MarkDeleted(s.clock())
	return s.writeEntity(path, entity)
}

// LoadTimesheets loads every spreadsheet blob with content
func (s *FileStore) LoadTimesheets(ctx context.Context) ([]models.TimesheetFile, error) {
	dir := filepath.Join(s.root, timesheetDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fkerrors.NewStorageError("failed to list timesheets", err)
	}

	var files []models.TimesheetFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable timesheet",
				zap.String("name", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		files = append(files, models.TimesheetFile{
			Name:     entry.Name(),
			Content:  content,
			Modified: info.ModTime(),
		})
	}
	return files, nil
}

// SaveTimesheet writes a spreadsheet blob as-is, preserving its
// modification time so last-write-wins keeps working across replicas
func (s *FileStore) SaveTimesheet(ctx context.Context, file models.TimesheetFile) error {
	if file.Name == "" {
		return fkerrors.NewValidationError("timesheet has no name", nil)
	}
	dir := filepath.Join(s.root, timesheetDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fkerrors.NewStorageError("failed to create timesheet directory", err)
	}

	path := filepath.Join(dir, filepath.Base(file.Name))
	if err := os.WriteFile(path, file.Content, 0644); err != nil {
		return fkerrors.NewStorageError("failed to write timesheet", err)
	}
	if !file.Modified.IsZero() {
		if err := os.Chtimes(path, file.Modified, file.Modified); err != nil {
			s.logger.Debug("Failed to preserve timesheet mtime", zap.Error(err))
		}
	}
	return nil
}

// resolvePath locates the file for an entity: the new human-readable
// naming convention is tried first, then the legacy id-based name, then a
// full scan for the id (covers renames). When nothing exists the
// new-convention path is returned with found=false.
func (s *FileStore) resolvePath(entityType models.EntityType, entity models.Entity) (string, bool) {
	dir := filepath.Join(s.root, string(entityType))
	if entityType == models.EntityInvoices {
		dir = filepath.Join(dir, InvoiceYear(entity, s.clock))
	}

	target := filepath.Join(dir, FileNameFor(entityType, entity)+jsonExt)
	if fileExists(target) {
		return target, true
	}

	legacy := filepath.Join(dir, entity.ID()+jsonExt)
	if fileExists(legacy) {
		return legacy, true
	}

	if path, existing := s.findByID(entityType, entity.ID()); existing != nil {
		return path, true
	}

	return target, false
}

// findByID scans a collection for the file holding the given id
func (s *FileStore) findByID(entityType models.EntityType, id string) (string, models.Entity) {
	if id == "" {
		return "", nil
	}

	dir := filepath.Join(s.root, string(entityType))
	var foundPath string
	var foundEntity models.Entity

	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipAll
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), jsonExt) {
			return nil
		}
		entity, err := s.readEntity(path)
		if err != nil {
			return nil
		}
		if entity.ID() == id {
			foundPath = path
			foundEntity = entity
			return filepath.SkipAll
		}
		return nil
	})

	return foundPath, foundEntity
}

func (s *FileStore) readEntity(path string) (models.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entity models.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *FileStore) writeEntity(path string, entity models.Entity) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fkerrors.NewStorageError("failed to marshal entity", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fkerrors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
