// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// request is a captured inbound request
type request struct {
	method      string
	path        string
	contentType string
	auth        string
	header      http.Header
	body        string
}

type recorder struct {
	mu       sync.Mutex
	requests []request
	status   int
}

func newRecorder(t *testing.T, status int) (*recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, request{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			header:      r.Header.Clone(),
			body:        string(body),
		})
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
		if rec.status >= 300 {
			io.WriteString(w, "nope")
		}
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func (r *recorder) last(t *testing.T) request {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatal("no requests received")
	}
	return r.requests[len(r.requests)-1]
}

func decodeBody(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("body %q: %v", body, err)
	}
	return m
}

func TestHTTP(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusOK)
	s := New(Config{})

	res := s.HTTP(context.Background(), actions.HTTP{
		Method:  "post",
		URL:     srv.URL + "/hook",
		Headers: map[string]string{"X-Pad": "1"},
		Body:    map[string]interface{}{"a": 1.0},
	}, actions.NewCancelToken())
	if !res.Success || res.Message != "HTTP 200" {
		t.Fatalf("HTTP() = %+v", res)
	}

	got := rec.last(t)
	if got.method != http.MethodPost || got.path != "/hook" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.contentType != "application/json" || got.header.Get("X-Pad") != "1" {
		t.Errorf("headers = %v", got.header)
	}
	if got.body != `{"a":1}` {
		t.Errorf("body = %q", got.body)
	}
}

func TestHTTPDefaultsAndBodies(t *testing.T) {
	tests := []struct {
		name        string
		cfg         actions.HTTP
		method      string
		contentType string
		body        string
	}{
		{"default get", actions.HTTP{}, http.MethodGet, "", ""},
		{"string body", actions.HTTP{Method: "PUT", Body: "raw"}, http.MethodPut, "text/plain", "raw"},
		{"json string", actions.HTTP{Method: "POST", BodyType: "json", Body: "raw"}, http.MethodPost, "application/json", `"raw"`},
		{"form", actions.HTTP{Method: "POST", BodyType: "form", Body: map[string]interface{}{"k": "v"}}, http.MethodPost, "application/x-www-form-urlencoded", "k=v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, srv := newRecorder(t, http.StatusNoContent)
			tt.cfg.URL = srv.URL
			res := New(Config{}).HTTP(context.Background(), tt.cfg, actions.NewCancelToken())
			if !res.Success {
				t.Fatalf("HTTP() failed: %s", res.Error)
			}
			got := rec.last(t)
			if got.method != tt.method || got.contentType != tt.contentType || got.body != tt.body {
				t.Errorf("request = %+v", got)
			}
		})
	}
}

func TestHTTPFailure(t *testing.T) {
	_, srv := newRecorder(t, http.StatusInternalServerError)
	res := New(Config{}).HTTP(context.Background(), actions.HTTP{URL: srv.URL}, actions.NewCancelToken())
	if res.Success || res.Error != "HTTP request failed: status 500: nope" {
		t.Errorf("HTTP() = %+v", res)
	}

	res = New(Config{}).HTTP(context.Background(), actions.HTTP{}, actions.NewCancelToken())
	if res.Success {
		t.Error("HTTP() without URL succeeded")
	}
}

func TestHomeAssistant(t *testing.T) {
	brightness := 300
	tests := []struct {
		name string
		cfg  actions.HomeAssistant
		path string
		body map[string]interface{}
	}{
		{
			name: "toggle",
			cfg:  actions.HomeAssistant{Operation: actions.HAToggle, EntityID: "light.desk"},
			path: "/api/services/homeassistant/toggle",
			body: map[string]interface{}{"entity_id": "light.desk"},
		},
		{
			name: "set brightness clamps",
			cfg:  actions.HomeAssistant{Operation: actions.HASetBrightness, EntityID: "light.desk", Brightness: &brightness},
			path: "/api/services/light/turn_on",
			body: map[string]interface{}{"entity_id": "light.desk", "brightness": 255.0},
		},
		{
			name: "run script",
			cfg:  actions.HomeAssistant{Operation: actions.HARunScript, EntityID: "script.night"},
			path: "/api/services/script/turn_on",
			body: map[string]interface{}{"entity_id": "script.night"},
		},
		{
			name: "trigger automation",
			cfg:  actions.HomeAssistant{Operation: actions.HATriggerAutomation, EntityID: "automation.door"},
			path: "/api/services/automation/trigger",
			body: map[string]interface{}{"entity_id": "automation.door"},
		},
		{
			name: "custom",
			cfg: actions.HomeAssistant{Operation: actions.HACustom, CustomService: &actions.HACustomService{
				Domain: "notify", Service: "mobile", Data: map[string]interface{}{"message": "hi"},
			}},
			path: "/api/services/notify/mobile",
			body: map[string]interface{}{"message": "hi"},
		},
		{
			name: "call service",
			cfg:  actions.HomeAssistant{Operation: actions.HACallService, Service: "fan.turn_on", EntityID: "fan.office", ServiceData: map[string]interface{}{"percentage": 50.0}},
			path: "/api/services/fan/turn_on",
			body: map[string]interface{}{"entity_id": "fan.office", "percentage": 50.0},
		},
		{
			name: "fire event",
			cfg:  actions.HomeAssistant{Operation: actions.HAFireEvent, EventType: "pad_pressed", ServiceData: map[string]interface{}{"button": 1.0}},
			path: "/api/events/pad_pressed",
			body: map[string]interface{}{"button": 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, srv := newRecorder(t, http.StatusOK)
			s := New(Config{HomeAssistantURL: srv.URL + "/", HomeAssistantToken: "secret"})

			res := s.HomeAssistant(context.Background(), tt.cfg, actions.NewCancelToken())
			if !res.Success {
				t.Fatalf("HomeAssistant() failed: %s", res.Error)
			}
			got := rec.last(t)
			if got.path != tt.path {
				t.Errorf("path = %q, want %q", got.path, tt.path)
			}
			if got.auth != "Bearer secret" {
				t.Errorf("Authorization = %q", got.auth)
			}
			if body := decodeBody(t, got.body); !reflect.DeepEqual(body, tt.body) {
				t.Errorf("body = %v, want %v", body, tt.body)
			}
		})
	}
}

func TestHomeAssistantErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		cfg  actions.HomeAssistant
	}{
		{"not configured", "", actions.HomeAssistant{Operation: actions.HAToggle, EntityID: "light.x"}},
		{"missing entity", "http://ha", actions.HomeAssistant{Operation: actions.HATurnOn}},
		{"missing brightness", "http://ha", actions.HomeAssistant{Operation: actions.HASetBrightness, EntityID: "light.x"}},
		{"bad service", "http://ha", actions.HomeAssistant{Operation: actions.HACallService, Service: "toggle"}},
		{"missing event type", "http://ha", actions.HomeAssistant{Operation: actions.HAFireEvent}},
		{"unknown operation", "http://ha", actions.HomeAssistant{Operation: "explode"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{HomeAssistantURL: tt.url})
			if res := s.HomeAssistant(context.Background(), tt.cfg, actions.NewCancelToken()); res.Success {
				t.Errorf("HomeAssistant() = %+v, want failure", res)
			}
		})
	}
}

func TestHomeAssistantUpstreamError(t *testing.T) {
	_, srv := newRecorder(t, http.StatusUnauthorized)
	s := New(Config{HomeAssistantURL: srv.URL})
	res := s.HomeAssistant(context.Background(), actions.HomeAssistant{Operation: actions.HAToggle, EntityID: "light.x"}, actions.NewCancelToken())
	if res.Success || !strings.Contains(res.Error, "status 401") {
		t.Errorf("HomeAssistant() = %+v", res)
	}
}

func TestWorkflow(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusOK)
	s := New(Config{WorkflowURL: srv.URL + "/"})

	res := s.Workflow(context.Background(), actions.Workflow{
		Operation: actions.WorkflowTriggerFlow,
		Endpoint:  "/pad/flow",
		FlowID:    "abc",
		Payload:   map[string]interface{}{"x": 1.0},
	}, actions.NewCancelToken())
	if !res.Success {
		t.Fatalf("Workflow() failed: %s", res.Error)
	}
	got := rec.last(t)
	if got.path != "/pad/flow" {
		t.Errorf("path = %q", got.path)
	}
	want := map[string]interface{}{"x": 1.0, "flowId": "abc"}
	if body := decodeBody(t, got.body); !reflect.DeepEqual(body, want) {
		t.Errorf("body = %v, want %v", body, want)
	}

	res = s.Workflow(context.Background(), actions.Workflow{
		Operation: actions.WorkflowSendEvent,
		Endpoint:  "events",
		EventName: "pressed",
	}, actions.NewCancelToken())
	if !res.Success {
		t.Fatalf("Workflow() failed: %s", res.Error)
	}
	body := decodeBody(t, rec.last(t).body)
	if body["event"] != "pressed" || body["timestamp"] == nil {
		t.Errorf("body = %v", body)
	}
}

func TestWorkflowErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		cfg  actions.Workflow
	}{
		{"not configured", "", actions.Workflow{Operation: actions.WorkflowTriggerFlow, Endpoint: "x"}},
		{"missing endpoint", "http://nr", actions.Workflow{Operation: actions.WorkflowTriggerFlow}},
		{"missing event name", "http://nr", actions.Workflow{Operation: actions.WorkflowSendEvent, Endpoint: "x"}},
		{"unknown operation", "http://nr", actions.Workflow{Operation: "deploy", Endpoint: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{WorkflowURL: tt.url})
			if res := s.Workflow(context.Background(), tt.cfg, actions.NewCancelToken()); res.Success {
				t.Errorf("Workflow() = %+v, want failure", res)
			}
		})
	}
}

func TestProfile(t *testing.T) {
	sw := &fakeSwitcher{}
	s := New(Config{Profiles: sw})

	res := s.Profile(context.Background(), actions.Profile{ProfileName: "Gaming"}, actions.NewCancelToken())
	if !res.Success || len(sw.switched) != 1 || sw.switched[0] != "Gaming" {
		t.Errorf("Profile() = %+v, switched %v", res, sw.switched)
	}

	res = s.Profile(context.Background(), actions.Profile{ProfileID: "id-1", ProfileName: "Gaming"}, actions.NewCancelToken())
	if !res.Success || sw.switched[1] != "id-1" {
		t.Errorf("Profile() prefers id: switched %v", sw.switched)
	}

	if res := New(Config{}).Profile(context.Background(), actions.Profile{ProfileID: "x"}, actions.NewCancelToken()); res.Success {
		t.Error("Profile() without switcher succeeded")
	}
	if res := s.Profile(context.Background(), actions.Profile{}, actions.NewCancelToken()); res.Success {
		t.Error("Profile() without target succeeded")
	}
}
