package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/scholar-cli/internal/ingest"
)

func testRuns() []ingest.Run {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(2 * time.Minute)
	return []ingest.Run{
		{
			ID:         uuid.MustParse("abc12345-6789-0000-0000-000000000000"),
			Status:     ingest.RunCompleted,
			Total:      10,
			Succeeded:  9,
			Failed:     1,
			StartedAt:  now,
			FinishedAt: &done,
		},
		{
			ID:        uuid.MustParse("def12345-6789-0000-0000-000000000000"),
			Status:    ingest.RunRunning,
			Total:     4,
			StartedAt: now.Add(time.Hour),
		},
	}
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, testRuns())

	output := buf.String()
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "def12345")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2m0s")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestComputeRunStats(t *testing.T) {
	runs := testRuns()
	failedAt := runs[1].StartedAt.Add(4 * time.Minute)
	runs = append(runs, ingest.Run{
		Status:     ingest.RunFailed,
		Total:      2,
		Failed:     2,
		StartedAt:  runs[1].StartedAt,
		FinishedAt: &failedAt,
	})

	s := computeRunStats(runs)
	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 16, s.Seeds)
	assert.Equal(t, 9, s.SeedsOK)
	assert.Equal(t, 3, s.SeedsBad)
	assert.InDelta(t, 180.0, s.AvgDurSecs, 0.001)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Zero(t, s.Runs)
	assert.Zero(t, s.AvgDurSecs)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Runs: 2, Completed: 1, Running: 1, Seeds: 14, SeedsOK: 9, SeedsBad: 1, AvgDurSecs: 120})

	output := buf.String()
	assert.Contains(t, output, "Runs:")
	assert.Contains(t, output, "14")
	assert.Contains(t, output, "Avg duration:")
	assert.Contains(t, output, "120.0s")
}

func TestFormatRunStats_NoDuration(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{})
	assert.NotContains(t, buf.String(), "Avg duration")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
