package mock

import (
	"context"
	"testing"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonRoundtrip(t *testing.T) {
	r := NewFakturoMockRemote()
	ctx := context.Background()

	company := models.Entity{
		"id":           models.SingletonID(models.EntityCompanyInfo),
		"name":         "ACME Corp",
		"lastModified": "2026-01-01T10:00:00Z",
	}
	require.NoError(t, r.Upload(ctx, models.EntityCompanyInfo, company))

	data, err := r.DownloadAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, data.CompanyInfo)
	assert.Equal(t, "ACME Corp", data.CompanyInfo["name"])

	stored := r.Stored(models.EntityCompanyInfo, models.SingletonID(models.EntityCompanyInfo))
	require.NotNil(t, stored)
	assert.Equal(t, "ACME Corp", stored["name"])
}

func TestUploadAllCountsSingletonsOnce(t *testing.T) {
	r := NewFakturoMockRemote()
	ctx := context.Background()

	data := &models.DataSet{
		CompanyInfo: models.Entity{
			"id":           models.SingletonID(models.EntityCompanyInfo),
			"name":         "ACME Corp",
			"lastModified": "2026-01-01T10:00:00Z",
		},
		TaxSettings: models.Entity{
			"id":           models.SingletonID(models.EntityTaxSettings),
			"rate":         21.0,
			"lastModified": "2026-01-01T10:00:00Z",
		},
	}

	uploaded, err := r.UploadAll(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, uploaded)

	// Unchanged content is skipped on the second push
	uploaded, err = r.UploadAll(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 0, uploaded)
}

func TestSeededTombstoneHiddenFromDownload(t *testing.T) {
	r := NewFakturoMockRemote()
	ctx := context.Background()

	r.Seed(models.EntityTaxSettings, models.Entity{
		"id":           models.SingletonID(models.EntityTaxSettings),
		"isDeleted":    true,
		"lastModified": "2026-01-01T10:00:00Z",
	})

	data, err := r.DownloadAll(ctx)
	require.NoError(t, err)
	assert.Nil(t, data.TaxSettings)

	stored := r.Stored(models.EntityTaxSettings, models.SingletonID(models.EntityTaxSettings))
	require.NotNil(t, stored)
	assert.True(t, stored.IsDeleted())
}
