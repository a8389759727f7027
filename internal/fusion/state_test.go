package fusion_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"walkerwatch/internal/fusion"
	"walkerwatch/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestStateStore_WalkerOnlyMetrics(t *testing.T) {
	s := fusion.NewStateStore()
	s.SetNowFunc(func() int64 { return 1000 })

	prev, curr := s.UpdateWalker(&models.WalkerPacket{
		ResidentID: "r1",
		Ts:         900,
		FsrLeft:    30,
		FsrRight:   10,
		TiltDeg:    floatPtr(12.0),
		Steps:      intPtr(42),
	})

	require.Nil(t, prev)
	require.NotNil(t, curr)
	require.Equal(t, "r1", curr.ResidentID)
	require.InDelta(t, 40.0, curr.Metrics.Reliance, 1e-3)
	require.InDelta(t, 0.5, curr.Metrics.Balance, 1e-3)
	require.False(t, curr.Metrics.FallSuspected)
	require.NotNil(t, curr.Metrics.Steps)
	require.Equal(t, 42, *curr.Metrics.Steps)
}

func TestStateStore_BalanceZeroPressure(t *testing.T) {
	s := fusion.NewStateStore()

	_, curr := s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1"})

	// 零压力时不会除零，balance 为 0
	require.InDelta(t, 0.0, curr.Metrics.Balance, 1e-3)
}

func TestStateStore_VisionStepsPreferred(t *testing.T) {
	s := fusion.NewStateStore()

	s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", Steps: intPtr(10)})
	_, curr := s.UpdateVision(&models.VisionPacket{ResidentID: "r1", StepCount: intPtr(25)})

	require.NotNil(t, curr.Metrics.Steps)
	require.Equal(t, 25, *curr.Metrics.Steps)
}

func TestStateStore_FallFromVisionFlag(t *testing.T) {
	s := fusion.NewStateStore()

	_, curr := s.UpdateVision(&models.VisionPacket{ResidentID: "r1", FallSuspected: true})
	require.True(t, curr.Metrics.FallSuspected)
}

func TestStateStore_FallFromTipOverTilt(t *testing.T) {
	s := fusion.NewStateStore()

	_, curr := s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", TiltDeg: floatPtr(60.0)})
	require.True(t, curr.Metrics.FallSuspected)

	_, curr = s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", TiltDeg: floatPtr(59.9)})
	require.False(t, curr.Metrics.FallSuspected)
}

func TestStateStore_PacketReplacesStream(t *testing.T) {
	s := fusion.NewStateStore()

	s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", FsrLeft: 10, FsrRight: 10, TiltDeg: floatPtr(40.0)})
	// 第二包未带倾角，整体替换后倾角应消失
	_, curr := s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", FsrLeft: 5, FsrRight: 5})

	require.Nil(t, curr.Metrics.TiltDeg)
	require.InDelta(t, 10.0, curr.Metrics.Reliance, 1e-3)
}

func TestStateStore_SnapshotAndCount(t *testing.T) {
	s := fusion.NewStateStore()

	s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1"})
	s.UpdateVision(&models.VisionPacket{ResidentID: "r2"})

	require.Equal(t, 2, s.Count())
	require.Len(t, s.Snapshot(), 2)

	_, ok := s.Get("r1")
	require.True(t, ok)
	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestStateStore_MergedTsUsesNewest(t *testing.T) {
	s := fusion.NewStateStore()
	s.SetNowFunc(func() int64 { return 1000 })

	_, curr := s.UpdateWalker(&models.WalkerPacket{ResidentID: "r1", Ts: 2000})
	require.Equal(t, int64(2000), curr.Ts)

	_, curr = s.UpdateVision(&models.VisionPacket{ResidentID: "r1", Ts: 500})
	require.Equal(t, int64(2000), curr.Ts)
}
