package culog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesEntry(t *testing.T) {
	l := NewLogger()
	defer l.Close()

	feed, cancel := l.Subscribe()
	defer cancel()

	l.Info().Src("orchestrator").Msg("tick started")

	select {
	case e := <-feed:
		require.Equal(t, LevelInfo, e.Level)
		require.Equal(t, "orchestrator", e.Src)
		require.Equal(t, "tick started", e.Msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log entry")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	l := NewLogger()
	defer l.Close()

	feed, cancel := l.Subscribe()
	cancel()

	l.Error().Msg("should not be delivered")

	_, ok := <-feed
	require.False(t, ok, "feed should be closed after cancel")
}

func TestFormatIncludesInputAndOutput(t *testing.T) {
	e := Entry{Level: LevelWarn, Src: "mixer", Input: "cam1", Output: "rtmp-out", Msg: "clipped"}
	s := format(e)
	require.Contains(t, s, "WARN")
	require.Contains(t, s, "mixer")
	require.Contains(t, s, "input=cam1")
	require.Contains(t, s, "output=rtmp-out")
}
