package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithProfilingLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   map[string]string
	}{
		{"nil labels", nil, map[string]string{}},
		{
			"operation labels",
			OperationLabels("reconcile", map[string]string{"strategy": "greedy_confidence"}),
			map[string]string{"operation": "reconcile", "strategy": "greedy_confidence"},
		},
		{
			"drops high cardinality",
			map[string]string{"region": "scoring", "line_id": "abc", "Match-ID": "m1"},
			map[string]string{"region": "scoring"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]string{}
			called := false
			WithProfilingLabels(context.Background(), tt.labels, func(c context.Context) {
				called = true
				pprof.ForLabels(c, func(k, v string) bool {
					got[k] = v
					return true
				})
			})
			require.True(t, called)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeLabels(t *testing.T) {
	long := strings.Repeat("x", MaxLabelValueLength+10)
	pairs := sanitizeLabels(map[string]string{
		"Account Type": "checking",
		"empty":        "",
		"b-key":        long,
		"":             "v",
	})

	require.Len(t, pairs, 4)
	assert.Equal(t, "account_type", pairs[0])
	assert.Equal(t, "checking", pairs[1])
	assert.Equal(t, "b_key", pairs[2])
	assert.Len(t, pairs[3], MaxLabelValueLength)
}

func TestRegionLabels(t *testing.T) {
	labels := RegionLabels("assignment", map[string]string{"operation": "reconcile"})
	assert.Equal(t, "assignment", labels[ProfilingLabelRegion])
	assert.Equal(t, "reconcile", labels[ProfilingLabelOperation])
}

func TestNewProfiler(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "reconciler"}, nil)
	assert.Error(t, err)

	types := ProfilerConfig{ProfileCPU: true, ProfileMutex: true}.profileTypes()
	assert.Len(t, types, 3)
}
