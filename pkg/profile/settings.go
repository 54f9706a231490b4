// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package profile

import "time"

// Settings defaults
const (
	DefaultBrightness       = 80
	DefaultLongPressMS      = 500
	DefaultKeepAliveSeconds = 10
)

// HomeAssistantSettings locates a Home Assistant instance
type HomeAssistantSettings struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// WorkflowSettings locates a workflow engine such as Node-RED
type WorkflowSettings struct {
	URL string `json:"url"`
}

// Settings are the application settings stored in settings.json
type Settings struct {
	ActiveProfileID  string                 `json:"activeProfileId,omitempty"`
	Brightness       int                    `json:"brightness"`
	LongPressMS      int                    `json:"longPressMs"`
	KeepAliveSeconds int                    `json:"keepAliveSeconds"`
	HomeAssistant    *HomeAssistantSettings `json:"homeAssistant,omitempty"`
	Workflow         *WorkflowSettings      `json:"workflow,omitempty"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() Settings {
	return Settings{
		Brightness:       DefaultBrightness,
		LongPressMS:      DefaultLongPressMS,
		KeepAliveSeconds: DefaultKeepAliveSeconds,
	}
}

// LongPress returns the long-press threshold
func (s Settings) LongPress() time.Duration {
	return time.Duration(s.LongPressMS) * time.Millisecond
}

// KeepAlive returns the keepalive interval
func (s Settings) KeepAlive() time.Duration {
	return time.Duration(s.KeepAliveSeconds) * time.Second
}

// normalize fills values a partial settings file left unset
func (s *Settings) normalize() {
	if s.Brightness < 0 || s.Brightness > 100 {
		s.Brightness = DefaultBrightness
	}
	if s.LongPressMS < 0 {
		s.LongPressMS = DefaultLongPressMS
	}
	if s.KeepAliveSeconds <= 0 {
		s.KeepAliveSeconds = DefaultKeepAliveSeconds
	}
}
