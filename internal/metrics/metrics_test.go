package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsFailures(t *testing.T) {
	r := New()
	require.NoError(t, r.Time("package", func() error { return nil }))
	require.Error(t, r.Time("package", func() error { return errors.New("boom") }))
	require.Error(t, r.Time("package", func() error { return errors.New("boom") }))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepFailures.WithLabelValues("package")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(r.stepDuration.WithLabelValues("package")), 0.0)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Observe("refresh-assets", time.Now(), nil)
	r.MarkSuccess(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "relicpack.prom")
	require.NoError(t, r.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relicpack_step_duration_seconds{step="refresh-assets"}`)
	assert.Contains(t, string(body), "relicpack_last_success_timestamp_seconds 1.7e+09")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Observe("package", time.Now(), errors.New("x"))
	r.MarkSuccess(time.Now())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.Time("package", func() error { return nil }))
}
