// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/binder"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/notify"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// fakeDevice records calls and returns err for every operation
type fakeDevice struct {
	mu      sync.Mutex
	calls   []string
	err     error
	status  device.Status
	devices []device.Info
	image   []byte
}

func (f *fakeDevice) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDevice) Status() device.Status { return f.status }

func (f *fakeDevice) Enumerate() ([]device.Info, error) {
	return f.devices, f.record("enumerate")
}

func (f *fakeDevice) Connect(ctx context.Context) (device.Info, error) {
	return device.Info{}, f.record("connect")
}

func (f *fakeDevice) Initialize(ctx context.Context) error { return f.record("initialize") }

func (f *fakeDevice) Disconnect(ctx context.Context) error { return f.record("disconnect") }

func (f *fakeDevice) SetBrightness(ctx context.Context, level int) error {
	return f.record(fmt.Sprintf("brightness %d", level))
}

func (f *fakeDevice) SetButtonImage(ctx context.Context, index int, image []byte) error {
	f.image = image
	return f.record(fmt.Sprintf("image %d", index))
}

func (f *fakeDevice) ClearButton(ctx context.Context, index *int) error {
	if index == nil {
		return f.record("clear all")
	}
	return f.record(fmt.Sprintf("clear %d", *index))
}

func (f *fakeDevice) StartPolling(ctx context.Context) error { return f.record("poll") }

// okHandlers succeeds for every action; scripts block until cancelled
type okHandlers struct {
	started chan struct{}
}

func (h okHandlers) Keyboard(context.Context, actions.Keyboard, actions.CancelToken) actions.Result {
	return actions.OkMessage("pressed")
}
func (h okHandlers) Media(context.Context, actions.Media, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) Launch(context.Context, actions.Launch, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) Script(ctx context.Context, cfg actions.Script, token actions.CancelToken) actions.Result {
	close(h.started)
	<-ctx.Done()
	return actions.Cancelled()
}
func (h okHandlers) HTTP(context.Context, actions.HTTP, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) System(context.Context, actions.System, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) Text(context.Context, actions.Text, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) Profile(context.Context, actions.Profile, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) HomeAssistant(context.Context, actions.HomeAssistant, actions.CancelToken) actions.Result {
	return actions.Ok()
}
func (h okHandlers) Workflow(context.Context, actions.Workflow, actions.CancelToken) actions.Result {
	return actions.Ok()
}

type testEnv struct {
	dev    *fakeDevice
	engine *actions.Engine
	broker *notify.Broker
	binder *binder.Binder
	h      okHandlers
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		dev:    &fakeDevice{status: device.Status{State: device.StateInitialized}},
		broker: notify.NewBroker(),
		binder: binder.New(),
		h:      okHandlers{started: make(chan struct{})},
	}
	env.engine = actions.NewEngine(env.h)
	s := &Server{Device: env.dev, Engine: env.engine, Binder: env.binder, Broker: env.broker}
	env.srv = httptest.NewServer(s.Routes())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{device.ErrDeviceNotFound, http.StatusNotFound},
		{device.ErrNotConnected, http.StatusConflict},
		{device.ErrNotInitialized, http.StatusConflict},
		{device.ErrInvalidState, http.StatusConflict},
		{fmt.Errorf("%w: index 9", device.ErrInvalidData), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", device.ErrReadFailed, device.ErrTimeout), http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{device.ErrConnectionLost, http.StatusBadGateway},
		{device.ErrTransport, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.binder.Bind(profile.New("Default"))

	resp := env.do(t, http.MethodGet, "/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got StatusResponse
	decode(t, resp, &got)
	if got.Device.State != device.StateInitialized || got.Profile != "Default" || got.Executing {
		t.Errorf("response = %+v", got)
	}
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/devices", nil)
	var got []device.Info
	decode(t, resp, &got)
	if resp.StatusCode != http.StatusOK || got == nil || len(got) != 0 {
		t.Errorf("GET /devices = %d %v", resp.StatusCode, got)
	}
}

func TestConnectSequence(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/device/connect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	want := "connect,initialize,poll"
	if got := strings.Join(env.dev.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestDeviceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		body   string
		want   int
	}{
		{"connect not found", device.ErrDeviceNotFound, http.MethodPost, "/device/connect", "", http.StatusNotFound},
		{"brightness not initialized", device.ErrNotInitialized, http.MethodPut, "/device/brightness", `{"level": 10}`, http.StatusConflict},
		{"image bad index", device.ErrInvalidData, http.MethodPut, "/buttons/9/image", "img", http.StatusBadRequest},
		{"clear lost", device.ErrConnectionLost, http.MethodDelete, "/buttons", "", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.dev.err = tt.err
			resp := env.do(t, tt.method, tt.path, []byte(tt.body))
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body errorResponse
			decode(t, resp, &body)
			if body.Error == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestBrightness(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPut, "/device/brightness", []byte(`{"level": 30}`))
	if resp.StatusCode != http.StatusOK || env.dev.calls[0] != "brightness 30" {
		t.Errorf("status %d calls %v", resp.StatusCode, env.dev.calls)
	}

	for _, body := range []string{``, `{}`, `{"level": "high"}`} {
		if resp := env.do(t, http.MethodPut, "/device/brightness", []byte(body)); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestButtons(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/buttons/2/image", []byte{0xFF, 0xD8, 0xFF})
	if resp.StatusCode != http.StatusNoContent || !bytes.Equal(env.dev.image, []byte{0xFF, 0xD8, 0xFF}) {
		t.Errorf("image upload: status %d image %x", resp.StatusCode, env.dev.image)
	}
	if resp := env.do(t, http.MethodDelete, "/buttons/4", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear button: status %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/buttons", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear all: status %d", resp.StatusCode)
	}
	want := "image 2,clear 4,clear all"
	if got := strings.Join(env.dev.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}

	if resp := env.do(t, http.MethodDelete, "/buttons/x", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-numeric index: status %d", resp.StatusCode)
	}
	big := make([]byte, maxImageSize+1)
	if resp := env.do(t, http.MethodPut, "/buttons/0/image", big); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized image: status %d", resp.StatusCode)
	}
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/actions/execute", []byte(`{"type":"keyboard","keys":"A"}`))
	var res actions.Result
	decode(t, resp, &res)
	if resp.StatusCode != http.StatusOK || !res.Success || res.Message != "pressed" {
		t.Errorf("execute = %d %+v", resp.StatusCode, res)
	}

	resp = env.do(t, http.MethodGet, "/actions/history", nil)
	var history []actions.HistoryEntry
	decode(t, resp, &history)
	if len(history) != 1 || history[0].ActionType != string(actions.KindKeyboard) {
		t.Errorf("history = %+v", history)
	}

	if resp := env.do(t, http.MethodDelete, "/actions/history", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear history: status %d", resp.StatusCode)
	}
	if len(env.engine.History()) != 0 {
		t.Error("history not cleared")
	}
}

func TestExecuteInvalid(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{`, `{"type":"teleport"}`, `{}`} {
		if resp := env.do(t, http.MethodPost, "/actions/execute", []byte(body)); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestExecuteBusyAndCancel(t *testing.T) {
	env := newTestEnv(t)

	done := make(chan actions.Result, 1)
	go func() {
		resp, err := http.Post(env.srv.URL+"/actions/execute", "application/json", strings.NewReader(`{"type":"script","scriptType":"bash","script":"sleep 60"}`))
		if err != nil {
			done <- actions.Failed("%v", err)
			return
		}
		defer resp.Body.Close()
		var res actions.Result
		json.NewDecoder(resp.Body).Decode(&res)
		done <- res
	}()

	select {
	case <-env.h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("script never started")
	}

	resp := env.do(t, http.MethodPost, "/actions/execute", []byte(`{"type":"keyboard","keys":"A"}`))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second execute status = %d, want 409", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/actions/cancel", nil)
	var cancel CancelResponse
	decode(t, resp, &cancel)
	if resp.StatusCode != http.StatusAccepted || !cancel.Cancelled {
		t.Errorf("cancel = %d %+v", resp.StatusCode, cancel)
	}

	select {
	case res := <-done:
		if res.Success {
			t.Errorf("cancelled script result = %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("script did not stop after cancel")
	}
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/events?topics=" + notify.TopicInputButton

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := notify.EventMessage(soomfon.EncoderEvent{Encoder: soomfon.EncoderMain, Trigger: soomfon.TriggerRotateCW})
	env.broker.Publish(msg)
	msg, _ = notify.EventMessage(soomfon.ButtonEvent{Index: 1, Kind: soomfon.ButtonLCD, Trigger: soomfon.TriggerPress})
	env.broker.Publish(msg)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Topic   string                 `json:"topic"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Topic != notify.TopicInputButton || got.Payload["trigger"] != "press" {
		t.Errorf("message = %+v", got)
	}
}

func TestEventsWithoutBroker(t *testing.T) {
	s := &Server{Device: &fakeDevice{}, Engine: actions.NewEngine(okHandlers{})}
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
