package protocol

import "time"

// AudioClip carries one fixed-duration PCM capture from an edge device.
type AudioClip struct {
	ClipID     string `json:"clip_id"`
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	DurationMS int    `json:"duration_ms"`
	PCM        []byte `json:"pcm"`
}

// Decision is the per-clip verdict broadcast on the bus.
type Decision struct {
	ClipID     string    `json:"clip_id"`
	SessionID  string    `json:"session_id"`
	Tier       string    `json:"tier"`
	AlertFired bool      `json:"alert_fired"`
	Incomplete bool      `json:"incomplete"`
	Timestamp  time.Time `json:"timestamp"`
	Evidence   []string  `json:"evidence,omitempty"`
}

// Alert is published only when the escalation state machine transitions.
type Alert struct {
	SessionID string    `json:"session_id"`
	ClipID    string    `json:"clip_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Tier      string    `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionReset is an external signal returning a session to quiet.
type SessionReset struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceAnnounce registers a capture device with the fleet registry.
type DeviceAnnounce struct {
	DeviceID     string            `json:"device_id"`
	Role         string            `json:"role"`
	Capabilities map[string]string `json:"capabilities,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// DeviceHeartbeat keeps a registered device marked healthy.
type DeviceHeartbeat struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectClipSubmitPrefix = "vigil.clip.submit"
	SubjectDecisionPrefix   = "vigil.decision"
	SubjectAlertPrefix      = "vigil.alert"
	SubjectSessionReset     = "vigil.session.reset"
	SubjectDeviceAnnounce   = "vigil.device.announce"
	SubjectDeviceHeartbeat  = "vigil.device.heartbeat"
)
