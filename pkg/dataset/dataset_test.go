package dataset

import (
	"path/filepath"
	"testing"

	"docmirror/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	known := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	tests := []struct {
		sel     string
		want    []int
		wantErr bool
	}{
		{"", known, false},
		{"all", known, false},
		{"3", []int{3}, false},
		{"1,3,5", []int{1, 3, 5}, false},
		{"5,3,3", []int{3, 5}, false},
		{"2-4", []int{2, 3, 4}, false},
		{"4-2", []int{2, 3, 4}, false},
		{"1-2, 10-20", []int{1, 2, 10, 11}, false},
		{"12,13", nil, true},
		{"a-b", nil, true},
		{"three", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			got, err := ParseSelection(tt.sel, known)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = "/srv/mirror"

	sets := Catalog(cfg, []int{2, 9})
	require.Len(t, sets, 2)

	ds := sets[1]
	assert.Equal(t, 9, ds.Number)
	assert.Equal(t, filepath.Join("/srv/mirror", "data9"), ds.Dir)
	assert.Equal(t, "https://www.justice.gov/epstein/doj-disclosures/data-set-9-files?page=4", ds.PageURL(4))
	assert.Equal(t, "dataset 9", ds.String())
}
