package persist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"walkerwatch/internal/models"
	"walkerwatch/internal/persist"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func stateWith(m models.MergedMetrics) *models.MergedState {
	return &models.MergedState{ResidentID: "r1", Metrics: m}
}

func TestCriticalTick(t *testing.T) {
	require.False(t, persist.CriticalTick(models.MergedMetrics{}))
	require.True(t, persist.CriticalTick(models.MergedMetrics{FallSuspected: true}))
	require.False(t, persist.CriticalTick(models.MergedMetrics{TiltDeg: floatPtr(49.9)}))
	require.True(t, persist.CriticalTick(models.MergedMetrics{TiltDeg: floatPtr(50.0)}))
}

func TestSignificantChange(t *testing.T) {
	base := stateWith(models.MergedMetrics{Steps: intPtr(10), TiltDeg: floatPtr(20.0)})

	// 无历史快照视为有变化
	require.True(t, persist.SignificantChange(nil, base))

	// 完全一致
	same := stateWith(models.MergedMetrics{Steps: intPtr(10), TiltDeg: floatPtr(20.0)})
	require.False(t, persist.SignificantChange(base, same))

	// 步数变化
	steps := stateWith(models.MergedMetrics{Steps: intPtr(11), TiltDeg: floatPtr(20.0)})
	require.True(t, persist.SignificantChange(base, steps))

	// 跌倒标志翻转
	fall := stateWith(models.MergedMetrics{Steps: intPtr(10), TiltDeg: floatPtr(20.0), FallSuspected: true})
	require.True(t, persist.SignificantChange(base, fall))

	// 倾角变化 < 2 度
	tiltSmall := stateWith(models.MergedMetrics{Steps: intPtr(10), TiltDeg: floatPtr(21.9)})
	require.False(t, persist.SignificantChange(base, tiltSmall))

	// 倾角变化 ≥ 2 度
	tiltBig := stateWith(models.MergedMetrics{Steps: intPtr(10), TiltDeg: floatPtr(22.0)})
	require.True(t, persist.SignificantChange(base, tiltBig))

	// 倾角出现/消失
	tiltGone := stateWith(models.MergedMetrics{Steps: intPtr(10)})
	require.True(t, persist.SignificantChange(base, tiltGone))
}

func TestThrottler_NormalInterval(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	d := th.Decide("r1", 1000, false, true)
	require.True(t, d.Persist)

	// 间隔未到
	d = th.Decide("r1", 1004, false, true)
	require.False(t, d.Persist)

	d = th.Decide("r1", 1005, false, true)
	require.True(t, d.Persist)
}

func TestThrottler_InsignificantSkipped(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	d := th.Decide("r1", 1000, false, false)
	require.False(t, d.Persist)
}

func TestThrottler_CriticalShortensInterval(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	require.True(t, th.Decide("r1", 1000, true, false).Persist)
	require.False(t, th.Decide("r1", 1000, true, false).Persist)
	// 风险态 1 秒后即可再落库，significant 与否不再影响
	require.True(t, th.Decide("r1", 1001, true, false).Persist)
}

func TestThrottler_FullPayloadEveryThird(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	var fulls []bool
	for i := int64(0); i < 6; i++ {
		d := th.Decide("r1", 1000+i*5, false, true)
		require.True(t, d.Persist)
		fulls = append(fulls, d.FullPayload)
	}
	require.Equal(t, []bool{false, false, true, false, false, true}, fulls)
}

func TestThrottler_AnalyticsTicks(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	// 分析节奏为 interval/2
	require.Equal(t, int64(2), th.AnalyticsIntervalSeconds())

	d := th.Decide("r1", 1000, false, false)
	require.True(t, d.Analytics)
	d = th.Decide("r1", 1001, false, false)
	require.False(t, d.Analytics)
	d = th.Decide("r1", 1002, false, false)
	require.True(t, d.Analytics)

	// 风险态无条件触发分析
	d = th.Decide("r1", 1003, true, false)
	require.True(t, d.Analytics)
}

func TestThrottler_AnalyticsIntervalFloor(t *testing.T) {
	th := persist.NewThrottler(1, 1, 3)
	require.Equal(t, int64(1), th.AnalyticsIntervalSeconds())
}

func TestThrottler_ResidentsIndependent(t *testing.T) {
	th := persist.NewThrottler(5, 1, 3)

	require.True(t, th.Decide("r1", 1000, false, true).Persist)
	require.True(t, th.Decide("r2", 1000, false, true).Persist)
}
