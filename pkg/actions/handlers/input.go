// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// xdotool key names for common key spellings
var xdotoolKeys = map[string]string{
	"enter":       "Return",
	"return":      "Return",
	"esc":         "Escape",
	"escape":      "Escape",
	"space":       "space",
	"tab":         "Tab",
	"backspace":   "BackSpace",
	"delete":      "Delete",
	"del":         "Delete",
	"insert":      "Insert",
	"home":        "Home",
	"end":         "End",
	"pageup":      "Prior",
	"pagedown":    "Next",
	"up":          "Up",
	"down":        "Down",
	"left":        "Left",
	"right":       "Right",
	"printscreen": "Print",
}

// xdotool modifier names
var xdotoolModifiers = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"cmd":     "super",
	"command": "super",
	"meta":    "super",
	"super":   "super",
	"win":     "super",
}

// xdotoolCombo converts "ctrl+shift+a" plus extra modifiers into an
// xdotool key chord
func xdotoolCombo(combo string, modifiers []string) (string, error) {
	parts := strings.Split(combo, "+")
	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return "", fmt.Errorf("no key specified")
	}

	var chord []string
	seen := map[string]bool{}
	for _, m := range append(modifiers, parts[:len(parts)-1]...) {
		name, ok := xdotoolModifiers[strings.ToLower(strings.TrimSpace(m))]
		if !ok {
			return "", fmt.Errorf("unknown modifier %q", m)
		}
		if !seen[name] {
			seen[name] = true
			chord = append(chord, name)
		}
	}

	lower := strings.ToLower(key)
	switch {
	case xdotoolKeys[lower] != "":
		key = xdotoolKeys[lower]
	case len(lower) >= 2 && lower[0] == 'f' && strings.Trim(lower[1:], "0123456789") == "":
		key = strings.ToUpper(lower)
	}
	return strings.Join(append(chord, key), "+"), nil
}

// Keyboard presses a key combination
func (s *Set) Keyboard(ctx context.Context, cfg actions.Keyboard, token actions.CancelToken) actions.Result {
	combo := cfg.Combo()
	if combo == "" {
		return actions.Failed("No key specified")
	}

	switch s.cfg.GOOS {
	case "linux":
		chord, err := xdotoolCombo(combo, cfg.Modifiers)
		if err != nil {
			return actions.Failed("Invalid key combination: %v", err)
		}
		if cfg.HoldDurationMS > 0 {
			if _, err := s.runner.Run(ctx, "xdotool", "keydown", chord); err != nil {
				return actions.Failed("Key press failed: %v", err)
			}
			sleep(ctx, time.Duration(cfg.HoldDurationMS)*time.Millisecond, token)
			// Always release, even when interrupted
			if _, err := s.runner.Run(context.WithoutCancel(ctx), "xdotool", "keyup", chord); err != nil {
				return actions.Failed("Key release failed: %v", err)
			}
			return actions.OkMessage("Held %s", chord)
		}
		if _, err := s.runner.Run(ctx, "xdotool", "key", "--clearmodifiers", chord); err != nil {
			return actions.Failed("Key press failed: %v", err)
		}
		return actions.OkMessage("Pressed %s", chord)

	case "darwin":
		script := appleKeystroke(combo, cfg.Modifiers)
		if _, err := s.runner.Run(ctx, "osascript", "-e", script); err != nil {
			return actions.Failed("Key press failed: %v", err)
		}
		return actions.OkMessage("Pressed %s", combo)

	default:
		return actions.Failed("Keyboard actions not supported on %s", s.cfg.GOOS)
	}
}

// appleKeystroke builds an AppleScript keystroke command
func appleKeystroke(combo string, modifiers []string) string {
	parts := strings.Split(combo, "+")
	key := parts[len(parts)-1]

	var using []string
	for _, m := range append(modifiers, parts[:len(parts)-1]...) {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "cmd", "command", "meta", "super", "win":
			using = append(using, "command down")
		case "ctrl", "control":
			using = append(using, "control down")
		case "alt", "option":
			using = append(using, "option down")
		case "shift":
			using = append(using, "shift down")
		}
	}

	cmd := fmt.Sprintf(`tell application "System Events" to keystroke %q`, key)
	if len(using) > 0 {
		cmd += " using {" + strings.Join(using, ", ") + "}"
	}
	return cmd
}

// media key names, accepting camelCase aliases
var xdotoolMedia = map[string]string{
	actions.MediaPlayPause:  "XF86AudioPlay",
	"playPause":             "XF86AudioPlay",
	actions.MediaNext:       "XF86AudioNext",
	"nextTrack":             "XF86AudioNext",
	actions.MediaPrevious:   "XF86AudioPrev",
	"previousTrack":         "XF86AudioPrev",
	actions.MediaVolumeUp:   "XF86AudioRaiseVolume",
	"volumeUp":              "XF86AudioRaiseVolume",
	actions.MediaVolumeDown: "XF86AudioLowerVolume",
	"volumeDown":            "XF86AudioLowerVolume",
	actions.MediaMute:       "XF86AudioMute",
	"volumeMute":            "XF86AudioMute",
	actions.MediaStop:       "XF86AudioStop",
}

// maxVolumeSteps caps repeated volume key presses
const maxVolumeSteps = 50

// Media sends a media key
func (s *Set) Media(ctx context.Context, cfg actions.Media, token actions.CancelToken) actions.Result {
	key, ok := xdotoolMedia[cfg.Action]
	if !ok {
		return actions.Failed("Unknown media action %q", cfg.Action)
	}

	repeat := 1
	if (key == "XF86AudioRaiseVolume" || key == "XF86AudioLowerVolume") && cfg.VolumeAmount > 1 {
		repeat = cfg.VolumeAmount
		if repeat > maxVolumeSteps {
			repeat = maxVolumeSteps
		}
	}

	switch s.cfg.GOOS {
	case "linux":
		args := []string{"key", "--repeat", fmt.Sprint(repeat), key}
		if _, err := s.runner.Run(ctx, "xdotool", args...); err != nil {
			return actions.Failed("Media key failed: %v", err)
		}
		return actions.OkMessage("Sent %s", cfg.Action)

	case "darwin":
		script := ""
		switch key {
		case "XF86AudioRaiseVolume":
			script = fmt.Sprintf("set volume output volume ((output volume of (get volume settings)) + %d)", repeat*2)
		case "XF86AudioLowerVolume":
			script = fmt.Sprintf("set volume output volume ((output volume of (get volume settings)) - %d)", repeat*2)
		case "XF86AudioMute":
			script = "set volume output muted not (output muted of (get volume settings))"
		default:
			return actions.Failed("Media action %q not supported on darwin", cfg.Action)
		}
		if _, err := s.runner.Run(ctx, "osascript", "-e", script); err != nil {
			return actions.Failed("Media key failed: %v", err)
		}
		return actions.OkMessage("Sent %s", cfg.Action)

	default:
		return actions.Failed("Media actions not supported on %s", s.cfg.GOOS)
	}
}

// Text types a string. With a per-character delay the token is checked
// between characters.
func (s *Set) Text(ctx context.Context, cfg actions.Text, token actions.CancelToken) actions.Result {
	if cfg.Text == "" {
		return actions.Failed("No text specified")
	}
	if cfg.DelayMS > 0 && !sleep(ctx, time.Duration(cfg.DelayMS)*time.Millisecond, token) {
		return actions.Cancelled()
	}

	switch s.cfg.GOOS {
	case "linux":
		if cfg.TypeDelayMS <= 0 {
			if _, err := s.runner.Run(ctx, "xdotool", "type", "--", cfg.Text); err != nil {
				return actions.Failed("Typing failed: %v", err)
			}
			return actions.OkMessage("Typed %d characters", len([]rune(cfg.Text)))
		}

		typed := 0
		for _, r := range cfg.Text {
			if token.IsCancelled() {
				return actions.Cancelled()
			}
			if _, err := s.runner.Run(ctx, "xdotool", "type", "--", string(r)); err != nil {
				return actions.Failed("Typing failed after %d characters: %v", typed, err)
			}
			typed++
			if !sleep(ctx, time.Duration(cfg.TypeDelayMS)*time.Millisecond, token) {
				return actions.Cancelled()
			}
		}
		return actions.OkMessage("Typed %d characters", typed)

	case "darwin":
		script := fmt.Sprintf(`tell application "System Events" to keystroke %q`, cfg.Text)
		if _, err := s.runner.Run(ctx, "osascript", "-e", script); err != nil {
			return actions.Failed("Typing failed: %v", err)
		}
		return actions.OkMessage("Typed %d characters", len([]rune(cfg.Text)))

	default:
		return actions.Failed("Text actions not supported on %s", s.cfg.GOOS)
	}
}

// systemCommands maps shortcuts to commands per platform
var systemCommands = map[string]map[string][]string{
	"linux": {
		actions.SystemSwitchDesktopLeft:  {"xdotool", "key", "ctrl+alt+Left"},
		actions.SystemSwitchDesktopRight: {"xdotool", "key", "ctrl+alt+Right"},
		actions.SystemShowDesktop:        {"xdotool", "key", "super+d"},
		actions.SystemLockScreen:         {"loginctl", "lock-session"},
		"lock":                           {"loginctl", "lock-session"},
		actions.SystemScreenshot:         {"xdotool", "key", "Print"},
		actions.SystemStartMenu:          {"xdotool", "key", "super"},
		actions.SystemTaskView:           {"xdotool", "key", "super+Tab"},
		actions.SystemSleep:              {"systemctl", "suspend"},
		actions.SystemHibernate:          {"systemctl", "hibernate"},
	},
	"darwin": {
		actions.SystemSwitchDesktopLeft:  {"osascript", "-e", `tell application "System Events" to key code 123 using control down`},
		actions.SystemSwitchDesktopRight: {"osascript", "-e", `tell application "System Events" to key code 124 using control down`},
		actions.SystemShowDesktop:        {"osascript", "-e", `tell application "System Events" to key code 103`},
		actions.SystemLockScreen:         {"pmset", "displaysleepnow"},
		"lock":                           {"pmset", "displaysleepnow"},
		actions.SystemScreenshot:         {"screencapture", "-c"},
		actions.SystemSleep:              {"pmset", "sleepnow"},
	},
}

// System triggers a desktop shortcut
func (s *Set) System(ctx context.Context, cfg actions.System, token actions.CancelToken) actions.Result {
	cmds, ok := systemCommands[s.cfg.GOOS]
	if !ok {
		return actions.Failed("System actions not supported on %s", s.cfg.GOOS)
	}
	argv, ok := cmds[cfg.Action]
	if !ok {
		return actions.Failed("Unknown system action %q", cfg.Action)
	}
	if _, err := s.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return actions.Failed("System action %s failed: %v", cfg.Action, err)
	}
	return actions.OkMessage("Ran %s", cfg.Action)
}
