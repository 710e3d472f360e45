package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

func TestHistoryXLSX(t *testing.T) {
	entries := []models.StoredHistoryEntry{
		{
			PatientID:      "p1",
			Latitude:       40.7128,
			Longitude:      -74.006,
			ObservedAt:     time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
			DistanceMeters: 0,
			Descriptor:     "Base Location",
			Status:         models.StatusSafe,
		},
		{
			PatientID:      "p1",
			Latitude:       40.7182,
			Longitude:      -74.006,
			ObservedAt:     time.Date(2024, 5, 6, 10, 6, 0, 0, time.UTC),
			DistanceMeters: 600,
			Descriptor:     "Far from Home",
			Status:         models.StatusAlert,
		},
	}

	data, err := HistoryXLSX(entries)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{historySheet}, f.GetSheetList())

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, HistoryHeader, rows[0])
	assert.Equal(t, "2024-05-06 10:00:00", rows[1][0])
	assert.Equal(t, "Far from Home", rows[2][4])
	assert.Equal(t, "alert", rows[2][5])
	assert.Equal(t, "600", rows[2][3])
}

func TestHistoryXLSX_Empty(t *testing.T) {
	data, err := HistoryXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
