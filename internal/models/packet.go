package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// WalkerPacket 助行器传感器数据包
//
// 来自助行器上的压力/倾角传感器，字段兼容 camelCase 和 snake_case 两种命名
// （不同版本的固件上报格式不一致）。
// 必填字段：residentId、fsrLeft、fsrRight。
type WalkerPacket struct {
	ResidentID string
	DeviceID   string
	Ts         int64
	FsrLeft    int
	FsrRight   int
	TiltDeg    *float64
	Steps      *int

	// Raw 原始负载（解析后的 JSON 对象），用于去重签名和全量留存
	Raw map[string]interface{}
}

// VisionPacket 视觉分析数据包
//
// 来自摄像头/视觉分析管线。除 residentId 外所有字段可选；
// 姿态/跌倒风险/冻结步态等描述性字段不参与融合算法，原样入库。
type VisionPacket struct {
	ResidentID    string
	CameraID      string
	Ts            int64
	FallSuspected bool
	StepCount     *int
	CadenceSpm    *float64
	StepVar       *float64

	// Raw 原始负载（解析后的 JSON 对象）
	Raw map[string]interface{}
}

// pickValue 按别名顺序取值（第一个非 nil 的命中）
func pickValue(raw map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(raw map[string]interface{}, keys ...string) string {
	v, ok := pickValue(raw, keys...)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func pickFloat(raw map[string]interface{}, keys ...string) *float64 {
	v, ok := pickValue(raw, keys...)
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

func pickInt(raw map[string]interface{}, keys ...string) *int {
	f := pickFloat(raw, keys...)
	if f == nil {
		return nil
	}
	i := int(math.Trunc(*f))
	return &i
}

func pickBool(raw map[string]interface{}, keys ...string) (bool, bool) {
	v, ok := pickValue(raw, keys...)
	if !ok {
		return false, false
	}
	if b, ok := v.(bool); ok {
		return b, true
	}
	return false, false
}

// ParseWalkerPacket 解析助行器数据包
//
// 负载形状非法（非 JSON 对象、缺少必填字段）返回 ValidationError 语义的 error，
// 调用方应以 400 拒绝，不做内部重试。
func ParseWalkerPacket(data []byte) (*WalkerPacket, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid walker packet: %w", err)
	}

	pkt := &WalkerPacket{Raw: raw}
	pkt.ResidentID = pickString(raw, "residentId", "resident_id")
	if pkt.ResidentID == "" {
		return nil, fmt.Errorf("residentId is required")
	}
	pkt.DeviceID = pickString(raw, "deviceId", "device_id")

	left := pickInt(raw, "fsrLeft", "fsr_left")
	right := pickInt(raw, "fsrRight", "fsr_right")
	if left == nil || right == nil {
		return nil, fmt.Errorf("fsrLeft and fsrRight are required")
	}
	pkt.FsrLeft = *left
	pkt.FsrRight = *right

	pkt.TiltDeg = pickFloat(raw, "tiltDeg", "tilt_deg")
	pkt.Steps = pickInt(raw, "steps")
	if ts := pickFloat(raw, "ts"); ts != nil {
		pkt.Ts = int64(*ts)
	}

	return pkt, nil
}

// ParseVisionPacket 解析视觉数据包
func ParseVisionPacket(data []byte) (*VisionPacket, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid vision packet: %w", err)
	}

	pkt := &VisionPacket{Raw: raw}
	pkt.ResidentID = pickString(raw, "residentId", "resident_id")
	if pkt.ResidentID == "" {
		return nil, fmt.Errorf("residentId is required")
	}
	pkt.CameraID = pickString(raw, "cameraId", "camera_id")

	if fall, ok := pickBool(raw, "fallSuspected", "fall_suspected"); ok {
		pkt.FallSuspected = fall
	}
	pkt.StepCount = pickInt(raw, "stepCount", "step_count")
	pkt.CadenceSpm = pickFloat(raw, "cadenceSpm", "cadence_spm")
	pkt.StepVar = pickFloat(raw, "stepVar", "step_var")
	if ts := pickFloat(raw, "ts"); ts != nil {
		pkt.Ts = int64(*ts)
	}

	return pkt, nil
}

// VisionString 从视觉原始负载里按别名取字符串字段（入库用）
func (p *VisionPacket) VisionString(keys ...string) *string {
	s := pickString(p.Raw, keys...)
	if s == "" {
		return nil
	}
	return &s
}

// VisionFloat 从视觉原始负载里按别名取浮点字段（入库用）
func (p *VisionPacket) VisionFloat(keys ...string) *float64 {
	return pickFloat(p.Raw, keys...)
}

// VisionInt 从视觉原始负载里按别名取整数字段（入库用）
func (p *VisionPacket) VisionInt(keys ...string) *int {
	return pickInt(p.Raw, keys...)
}

// VisionBool 从视觉原始负载里按别名取布尔字段（入库用）
func (p *VisionPacket) VisionBool(keys ...string) *bool {
	if b, ok := pickBool(p.Raw, keys...); ok {
		return &b
	}
	return nil
}
