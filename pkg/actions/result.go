// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import "fmt"

// BusyMessage is the error reported when an action is already running
const BusyMessage = "Another action is currently executing"

// Result is the outcome of running an action. Message is set on success,
// Error on failure.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Ok returns a successful result
func Ok() Result {
	return Result{Success: true}
}

// OkMessage returns a successful result with a message
func OkMessage(format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Failed returns a failed result
func Failed(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Cancelled is the result reported by handlers that stop on cancellation
func Cancelled() Result {
	return Failed("Action cancelled")
}
