// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// LuaRunner runs Lua scripts in a fresh state per call. Compiled chunks
// are cached by source hash.
type LuaRunner struct {
	protos *lru.Cache[string, *glua.FunctionProto]
}

// DefaultLuaCacheSize is the compiled script cache size used when none is given
const DefaultLuaCacheSize = 64

// NewLuaRunner creates a runner caching up to size compiled scripts.
// A size of zero or less uses DefaultLuaCacheSize.
func NewLuaRunner(size int) *LuaRunner {
	if size <= 0 {
		size = DefaultLuaCacheSize
	}
	cache, err := lru.New[string, *glua.FunctionProto](size)
	if err != nil {
		// lru only rejects non-positive sizes
		panic(err)
	}
	return &LuaRunner{protos: cache}
}

func (r *LuaRunner) compile(name, code string) (*glua.FunctionProto, error) {
	sum := sha256.Sum256([]byte(code))
	key := hex.EncodeToString(sum[:])
	if proto, ok := r.protos.Get(key); ok {
		return proto, nil
	}

	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, err
	}
	proto, err := glua.Compile(chunk, name)
	if err != nil {
		return nil, err
	}
	r.protos.Add(key, proto)
	return proto, nil
}

// Run executes code and returns its output. A string returned by the chunk
// takes precedence over printed output.
func (r *LuaRunner) Run(ctx context.Context, name, code string, token actions.CancelToken) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("empty script")
	}
	proto, err := r.compile(name, code)
	if err != nil {
		return "", err
	}

	L := glua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	var out strings.Builder
	L.SetGlobal("print", L.NewFunction(func(L *glua.LState) int {
		top := L.GetTop()
		for i := 1; i <= top; i++ {
			if i > 1 {
				out.WriteByte('\t')
			}
			out.WriteString(L.ToStringMeta(L.Get(i)).String())
		}
		out.WriteByte('\n')
		return 0
	}))
	r.registerPad(L, token)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return strings.TrimSpace(out.String()), err
	}

	ret := L.Get(-1)
	L.Pop(1)
	if s, ok := ret.(glua.LString); ok {
		return string(s), nil
	}
	return strings.TrimSpace(out.String()), nil
}

// registerPad installs the pad table: pad.cancelled(), pad.sleep(ms) and
// pad.log(msg)
func (r *LuaRunner) registerPad(L *glua.LState, token actions.CancelToken) {
	pad := L.NewTable()

	L.SetField(pad, "cancelled", L.NewFunction(func(L *glua.LState) int {
		L.Push(glua.LBool(token.IsCancelled()))
		return 1
	}))

	L.SetField(pad, "sleep", L.NewFunction(func(L *glua.LState) int {
		ms := L.CheckInt(1)
		ok := sleep(L.Context(), time.Duration(ms)*time.Millisecond, token)
		L.Push(glua.LBool(ok))
		return 1
	}))

	L.SetField(pad, "log", L.NewFunction(func(L *glua.LState) int {
		slog.Info("lua script", "message", L.CheckString(1))
		return 0
	}))

	L.SetGlobal("pad", pad)
}
