// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import "sync/atomic"

// CancelToken is a shared cancellation flag. Copies and clones observe the
// same flag.
type CancelToken struct {
	flag *atomic.Bool
}

// NewCancelToken returns a token in the not-cancelled state
func NewCancelToken() CancelToken {
	return CancelToken{flag: new(atomic.Bool)}
}

// IsCancelled reports whether cancellation was requested
func (t CancelToken) IsCancelled() bool {
	return t.flag != nil && t.flag.Load()
}

// Cancel requests cancellation
func (t CancelToken) Cancel() {
	if t.flag != nil {
		t.flag.Store(true)
	}
}

// Reset clears the flag for every holder
func (t CancelToken) Reset() {
	if t.flag != nil {
		t.flag.Store(false)
	}
}

// Clone returns a token sharing the same flag
func (t CancelToken) Clone() CancelToken {
	return t
}
