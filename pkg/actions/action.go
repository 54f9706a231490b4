// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package actions defines the actions a control can trigger and the engine
// that runs them one at a time.
//
// An Action is one of ten configuration structs. Handlers for each kind are
// supplied to the Engine through the Handlers interface.
package actions

// Kind names an action type
type Kind string

const (
	KindKeyboard      Kind = "keyboard"
	KindMedia         Kind = "media"
	KindLaunch        Kind = "launch"
	KindScript        Kind = "script"
	KindHTTP          Kind = "http"
	KindSystem        Kind = "system"
	KindText          Kind = "text"
	KindProfile       Kind = "profile"
	KindHomeAssistant Kind = "homeAssistant"
	KindWorkflow      Kind = "workflow"
)

// kindAliases maps alternate type tags onto their kind
var kindAliases = map[string]Kind{
	"home_assistant": KindHomeAssistant,
	"nodeRed":        KindWorkflow,
	"node_red":       KindWorkflow,
}

// ParseKind resolves a type tag, accepting aliases
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindKeyboard, KindMedia, KindLaunch, KindScript, KindHTTP,
		KindSystem, KindText, KindProfile, KindHomeAssistant, KindWorkflow:
		return k, true
	}
	k, ok := kindAliases[s]
	return k, ok
}

// Action is one of Keyboard, Media, Launch, Script, HTTP, System, Text,
// Profile, HomeAssistant or Workflow
type Action interface {
	Kind() Kind
	// Clone returns a deep copy
	Clone() Action
	isAction()
}

// Keyboard presses a key combination
type Keyboard struct {
	Keys           string   `json:"keys,omitempty"`
	Key            string   `json:"key,omitempty"`
	Modifiers      []string `json:"modifiers,omitempty"`
	HoldDurationMS int      `json:"holdDuration,omitempty"`
}

// Combo returns the configured key, preferring Keys over the older Key field
func (a Keyboard) Combo() string {
	if a.Keys != "" {
		return a.Keys
	}
	return a.Key
}

// Media operations
const (
	MediaPlayPause  = "play_pause"
	MediaNext       = "next"
	MediaPrevious   = "previous"
	MediaVolumeUp   = "volume_up"
	MediaVolumeDown = "volume_down"
	MediaMute       = "mute"
	MediaStop       = "stop"
)

// Media sends a media key
type Media struct {
	Action       string `json:"action"`
	VolumeAmount int    `json:"volumeAmount,omitempty"`
}

// Launch starts a program or opens a URL
type Launch struct {
	Path             string   `json:"path"`
	Args             []string `json:"args,omitempty"`
	WorkingDirectory string   `json:"workingDirectory,omitempty"`
	UseShell         bool     `json:"useShell,omitempty"`
}

// Script types
const (
	ScriptPowerShell = "powerShell"
	ScriptBash       = "bash"
	ScriptCmd        = "cmd"
	ScriptFile       = "file"
	ScriptLua        = "lua"
)

// Script runs a script with a timeout
type Script struct {
	ScriptType string `json:"scriptType"`
	Script     string `json:"script,omitempty"`
	Content    string `json:"content,omitempty"`
	ScriptPath string `json:"scriptPath,omitempty"`
	TimeoutMS  int    `json:"timeoutMs,omitempty"`
}

// Source returns the inline script body
func (a Script) Source() string {
	if a.Script != "" {
		return a.Script
	}
	return a.Content
}

// HTTP sends a request
type HTTP struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	BodyType  string            `json:"bodyType,omitempty"`
	Body      interface{}       `json:"body,omitempty"`
	TimeoutMS int               `json:"timeoutMs,omitempty"`
}

// System shortcuts
const (
	SystemSwitchDesktopLeft  = "switch_desktop_left"
	SystemSwitchDesktopRight = "switch_desktop_right"
	SystemShowDesktop        = "show_desktop"
	SystemLockScreen         = "lock_screen"
	SystemScreenshot         = "screenshot"
	SystemStartMenu          = "start_menu"
	SystemTaskView           = "task_view"
	SystemSleep              = "sleep"
	SystemHibernate          = "hibernate"
)

// System triggers a desktop shortcut
type System struct {
	Action string `json:"action"`
}

// Text types a string
type Text struct {
	Text        string `json:"text"`
	TypeDelayMS int    `json:"typeDelay,omitempty"`
	DelayMS     int    `json:"delayMs,omitempty"`
}

// Profile switches the active profile
type Profile struct {
	ProfileID   string `json:"profileId,omitempty"`
	ProfileName string `json:"profileName,omitempty"`
}

// Home Assistant operations
const (
	HAToggle            = "toggle"
	HATurnOn            = "turn_on"
	HATurnOff           = "turn_off"
	HASetBrightness     = "set_brightness"
	HARunScript         = "run_script"
	HATriggerAutomation = "trigger_automation"
	HACustom            = "custom"
	HACallService       = "call_service"
	HAFireEvent         = "fire_event"
)

// HACustomService names a service for HACustom
type HACustomService struct {
	Domain  string                 `json:"domain"`
	Service string                 `json:"service"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// HomeAssistant calls a Home Assistant service or fires an event
type HomeAssistant struct {
	Operation     string                 `json:"operation"`
	EntityID      string                 `json:"entityId,omitempty"`
	Brightness    *int                   `json:"brightness,omitempty"`
	CustomService *HACustomService       `json:"customService,omitempty"`
	Service       string                 `json:"service,omitempty"`
	ServiceData   map[string]interface{} `json:"serviceData,omitempty"`
	EventType     string                 `json:"eventType,omitempty"`
}

// Workflow operations
const (
	WorkflowTriggerFlow = "trigger_flow"
	WorkflowSendEvent   = "send_event"
	WorkflowCustom      = "custom"
)

// Workflow posts to a workflow engine webhook
type Workflow struct {
	Operation string                 `json:"operation"`
	Endpoint  string                 `json:"endpoint"`
	EventName string                 `json:"eventName,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	FlowID    string                 `json:"flowId,omitempty"`
}

func (Keyboard) Kind() Kind      { return KindKeyboard }
func (Media) Kind() Kind         { return KindMedia }
func (Launch) Kind() Kind        { return KindLaunch }
func (Script) Kind() Kind        { return KindScript }
func (HTTP) Kind() Kind          { return KindHTTP }
func (System) Kind() Kind        { return KindSystem }
func (Text) Kind() Kind          { return KindText }
func (Profile) Kind() Kind       { return KindProfile }
func (HomeAssistant) Kind() Kind { return KindHomeAssistant }
func (Workflow) Kind() Kind      { return KindWorkflow }

func (Keyboard) isAction()      {}
func (Media) isAction()         {}
func (Launch) isAction()        {}
func (Script) isAction()        {}
func (HTTP) isAction()          {}
func (System) isAction()        {}
func (Text) isAction()          {}
func (Profile) isAction()       {}
func (HomeAssistant) isAction() {}
func (Workflow) isAction()      {}

func (a Keyboard) Clone() Action {
	a.Modifiers = cloneStrings(a.Modifiers)
	return a
}

func (a Media) Clone() Action { return a }

func (a Launch) Clone() Action {
	a.Args = cloneStrings(a.Args)
	return a
}

func (a Script) Clone() Action { return a }

func (a HTTP) Clone() Action {
	if a.Headers != nil {
		h := make(map[string]string, len(a.Headers))
		for k, v := range a.Headers {
			h[k] = v
		}
		a.Headers = h
	}
	a.Body = cloneValue(a.Body)
	return a
}

func (a System) Clone() Action  { return a }
func (a Text) Clone() Action    { return a }
func (a Profile) Clone() Action { return a }

func (a HomeAssistant) Clone() Action {
	if a.Brightness != nil {
		b := *a.Brightness
		a.Brightness = &b
	}
	if a.CustomService != nil {
		cs := *a.CustomService
		cs.Data = cloneMap(cs.Data)
		a.CustomService = &cs
	}
	a.ServiceData = cloneMap(a.ServiceData)
	return a
}

func (a Workflow) Clone() Action {
	a.Payload = cloneMap(a.Payload)
	return a
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep copies decoded JSON/CBOR values
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
