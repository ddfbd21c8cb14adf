package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/models"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidDataset(t *testing.T) {
	path := writeDataset(t, `[
		{"Platform": "Dropbox", "PlanName": "Basic", "Price": 0, "BillingPeriod": "Monthly", "StorageGB": 2, "Features": ["file_sync"]},
		{"Platform": "Dropbox", "PlanName": "Plus", "Price": 15.99, "BillingPeriod": "Monthly", "StorageGB": 2048, "Features": ["file_sync", "offline_access"]}
	]`)

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	assert.Equal(t, "Basic", ds.Records[0].PlanName)
	assert.Equal(t, 0.0, ds.Records[0].Price)
	assert.Equal(t, models.BillingMonthly, ds.Records[1].BillingPeriod)
	assert.Equal(t, []string{"Dropbox"}, ds.Platforms())
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
	assert.True(t, commonerrors.IsDatasetError(err))
}

func TestLoad_MalformedEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not json",
			content: `{{{`,
		},
		{
			name:    "missing required field",
			content: `[{"Platform": "Box", "Price": 5, "BillingPeriod": "Monthly", "StorageGB": 100, "Features": []}]`,
		},
		{
			name:    "invalid billing period",
			content: `[{"Platform": "Box", "PlanName": "Starter", "Price": 5, "BillingPeriod": "Weekly", "StorageGB": 100, "Features": []}]`,
		},
		{
			name:    "negative price",
			content: `[{"Platform": "Box", "PlanName": "Starter", "Price": -1, "BillingPeriod": "Monthly", "StorageGB": 100, "Features": []}]`,
		},
		{
			name:    "empty dataset",
			content: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDataset(t, tt.content)

			_, err := Load(path)

			require.Error(t, err)
			assert.True(t, commonerrors.IsDatasetError(err), "expected DATASET_ERROR, got %v", err)
		})
	}
}
