package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"walkerwatch/internal/models"
)

func TestParseWalkerPacket_CamelCase(t *testing.T) {
	pkt, err := models.ParseWalkerPacket([]byte(`{
		"residentId": "walker-001",
		"deviceId": "dev-1",
		"ts": 1700000000,
		"fsrLeft": 12,
		"fsrRight": 8,
		"tiltDeg": 15.5,
		"steps": 42
	}`))
	require.NoError(t, err)
	require.Equal(t, "walker-001", pkt.ResidentID)
	require.Equal(t, "dev-1", pkt.DeviceID)
	require.Equal(t, int64(1700000000), pkt.Ts)
	require.Equal(t, 12, pkt.FsrLeft)
	require.Equal(t, 8, pkt.FsrRight)
	require.InDelta(t, 15.5, *pkt.TiltDeg, 1e-6)
	require.Equal(t, 42, *pkt.Steps)
}

func TestParseWalkerPacket_SnakeCaseAliases(t *testing.T) {
	pkt, err := models.ParseWalkerPacket([]byte(`{
		"resident_id": "walker-001",
		"fsr_left": 3,
		"fsr_right": 4,
		"tilt_deg": 2.0
	}`))
	require.NoError(t, err)
	require.Equal(t, "walker-001", pkt.ResidentID)
	require.Equal(t, 3, pkt.FsrLeft)
	require.InDelta(t, 2.0, *pkt.TiltDeg, 1e-6)
	require.Nil(t, pkt.Steps)
	require.Equal(t, int64(0), pkt.Ts)
}

func TestParseWalkerPacket_MissingRequired(t *testing.T) {
	_, err := models.ParseWalkerPacket([]byte(`{"fsrLeft": 1, "fsrRight": 2}`))
	require.Error(t, err)

	_, err = models.ParseWalkerPacket([]byte(`{"residentId": "r1", "fsrLeft": 1}`))
	require.Error(t, err)

	_, err = models.ParseWalkerPacket([]byte(`not json`))
	require.Error(t, err)
}

func TestParseVisionPacket(t *testing.T) {
	pkt, err := models.ParseVisionPacket([]byte(`{
		"residentId": "walker-001",
		"cameraId": "cam-1",
		"ts": 1700000000,
		"fall_suspected": true,
		"step_count": 30,
		"cadence_spm": 95.0,
		"step_var": 0.12,
		"posture_state": "standing"
	}`))
	require.NoError(t, err)
	require.Equal(t, "cam-1", pkt.CameraID)
	require.True(t, pkt.FallSuspected)
	require.Equal(t, 30, *pkt.StepCount)
	require.InDelta(t, 95.0, *pkt.CadenceSpm, 1e-6)

	// 未建模的字段从原始负载按别名读取
	require.Equal(t, "standing", *pkt.VisionString("postureState", "posture_state"))
	require.Nil(t, pkt.VisionString("fogStatus", "fog_status"))
	require.Nil(t, pkt.VisionBool("personDetected", "person_detected"))
}

func TestParseVisionPacket_MissingResident(t *testing.T) {
	_, err := models.ParseVisionPacket([]byte(`{"cameraId": "cam-1"}`))
	require.Error(t, err)
}
