package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkerwatch/internal/ingest"
)

func newNormalizer(t *testing.T, allowed string, windowMs int) (*ingest.Normalizer, *ingest.Stats) {
	t.Helper()
	stats := ingest.NewStats()
	n := ingest.NewNormalizer(allowed, windowMs, stats, zap.NewNop())
	return n, stats
}

func TestNormalizeTs_MillisConverted(t *testing.T) {
	n, stats := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	got := n.NormalizeTs(1700000000123)
	require.Equal(t, int64(1700000000), got)
	require.Equal(t, int64(1), stats.Snapshot().TsNormalized)
}

func TestNormalizeTs_ZeroGetsNow(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	require.Equal(t, int64(1700000000), n.NormalizeTs(0))
}

func TestNormalizeTs_OutOfWindowReplaced(t *testing.T) {
	n, stats := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	// 6 年前
	require.Equal(t, int64(1700000000), n.NormalizeTs(1700000000-86400*365*6))
	// 2 天后
	require.Equal(t, int64(1700000000), n.NormalizeTs(1700000000+86400*2))
	require.Equal(t, int64(2), stats.Snapshot().TsRejected)
}

func TestNormalizeTs_InWindowKept(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	require.Equal(t, int64(1699999000), n.NormalizeTs(1699999000))
}

func TestEnforceResident_EmptyRejected(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	require.Error(t, n.EnforceResident(""))
}

func TestEnforceResident_MismatchAcceptedWithWarning(t *testing.T) {
	n, stats := newNormalizer(t, "walker-001", 250)

	require.NoError(t, n.EnforceResident("walker-001"))
	require.NoError(t, n.EnforceResident("intruder"))
	require.Equal(t, int64(1), stats.Snapshot().ResidentRejected)
}

func TestIsDuplicate_WithinWindow(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	base := time.Unix(1700000000, 0)
	now := base
	n.SetNowFunc(func() time.Time { return now })

	payload := map[string]interface{}{"residentId": "r1", "fsrLeft": 10.0, "ts": int64(1700000000)}
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))

	// 100ms 后同样的负载（ts 不同不影响签名）
	now = base.Add(100 * time.Millisecond)
	dup := map[string]interface{}{"residentId": "r1", "fsrLeft": 10.0, "ts": int64(1700000001)}
	require.True(t, n.IsDuplicate(ingest.StreamWalker, "r1", dup))
}

func TestIsDuplicate_OutsideWindow(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	base := time.Unix(1700000000, 0)
	now := base
	n.SetNowFunc(func() time.Time { return now })

	payload := map[string]interface{}{"residentId": "r1", "fsrLeft": 10.0}
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))

	now = base.Add(300 * time.Millisecond)
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))
}

func TestIsDuplicate_DifferentPayload(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1",
		map[string]interface{}{"fsrLeft": 10.0}))
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1",
		map[string]interface{}{"fsrLeft": 11.0}))
}

func TestIsDuplicate_StreamsIndependent(t *testing.T) {
	n, _ := newNormalizer(t, "", 250)
	now := time.Unix(1700000000, 0)
	n.SetNowFunc(func() time.Time { return now })

	payload := map[string]interface{}{"residentId": "r1"}
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))
	require.False(t, n.IsDuplicate(ingest.StreamVision, "r1", payload))
}

func TestIsDuplicate_DisabledWindow(t *testing.T) {
	n, _ := newNormalizer(t, "", 0)

	payload := map[string]interface{}{"residentId": "r1"}
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))
	require.False(t, n.IsDuplicate(ingest.StreamWalker, "r1", payload))
}
