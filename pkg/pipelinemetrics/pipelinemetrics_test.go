package pipelinemetrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *Metrics, name string) []*dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var out []*dto.MetricFamily
	for _, f := range families {
		if f.GetName() == name {
			out = append(out, f)
		}
	}
	return out
}

func TestObserveTickRecordsHistogramSample(t *testing.T) {
	m := New()
	m.ObserveTick(15 * time.Millisecond)

	families := gather(t, m, "compositor_tick_duration_seconds")
	require.Len(t, families, 1)
	require.Equal(t, uint64(1), families[0].Metric[0].GetHistogram().GetSampleCount())
}

func TestIncDroppedIncrementsLabeledCounter(t *testing.T) {
	m := New()
	m.IncDropped("cam1", "video")
	m.IncDropped("cam1", "video")
	m.IncDropped("mic1", "audio")

	families := gather(t, m, "compositor_dropped_frames_total")
	require.Len(t, families, 1)
	require.Len(t, families[0].Metric, 2)
}

func TestSetQueueDepthReflectsLatestValue(t *testing.T) {
	m := New()
	m.SetQueueDepth("cam1", "video", 3)
	m.SetQueueDepth("cam1", "video", 1)

	families := gather(t, m, "compositor_queue_depth")
	require.Len(t, families, 1)
	require.Equal(t, float64(1), families[0].Metric[0].GetGauge().GetValue())
}

func TestActiveInputsOutputsGauges(t *testing.T) {
	m := New()
	m.SetActiveInputs(4)
	m.SetActiveOutputs(2)

	in := gather(t, m, "compositor_active_inputs")
	out := gather(t, m, "compositor_active_outputs")
	require.Equal(t, float64(4), in[0].Metric[0].GetGauge().GetValue())
	require.Equal(t, float64(2), out[0].Metric[0].GetGauge().GetValue())
}
