package catalog

import (
	"testing"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid catalog",
			filePath: "testdata/valid_catalog.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read catalog file",
		},
		{
			name:      "duplicate key",
			filePath:  "testdata/duplicate_key.yaml",
			wantErr:   true,
			errString: "duplicate key",
		},
		{
			name:      "price beyond token precision",
			filePath:  "testdata/bad_price.yaml",
			wantErr:   true,
			errString: "invalid price",
		},
		{
			name:      "text service without template",
			filePath:  "testdata/missing_template.yaml",
			wantErr:   true,
			errString: "text services require a template",
		},
		{
			name:      "unknown kind",
			filePath:  "testdata/unknown_kind.yaml",
			wantErr:   true,
			errString: "unknown kind",
		},
		{
			name:      "empty catalog",
			filePath:  "testdata/empty.yaml",
			wantErr:   true,
			errString: "no services",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cat)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cat)
				assert.Equal(t, 2, cat.Len())
			}
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	cat, err := Load("testdata/valid_catalog.yaml")
	require.NoError(t, err)

	entry, err := cat.Lookup("summarize")
	require.NoError(t, err)
	assert.Equal(t, domain.KindText, entry.Kind)
	assert.Equal(t, "0.500000", entry.PriceAmount().String())

	entry, err = cat.Lookup("illustration")
	require.NoError(t, err)
	assert.Equal(t, domain.KindImage, entry.Kind)
	assert.Equal(t, "dall-e-3", entry.Model)

	_, err = cat.Lookup("no-such-service")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnknown)
}
