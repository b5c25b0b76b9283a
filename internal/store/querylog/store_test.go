package querylog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "q", "queries.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Append(ctx, Entry{TraceID: "t1", Statistic: "", Cohort: "product", Rows: 3, DurationMS: 2})
	require.NoError(t, err)
	_, err = s.Append(ctx, Entry{TraceID: "t2", Statistic: "sum", Cohort: "nope", Error: "unknown cohort"})
	require.NoError(t, err)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].TraceID)
	assert.Equal(t, "unknown cohort", got[0].Error)
	assert.Equal(t, "t1", got[1].TraceID)
	assert.Equal(t, 3, got[1].Rows)
	assert.Empty(t, got[1].Error)
	assert.NotZero(t, got[1].Timestamp)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNewStoreRequiresPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
