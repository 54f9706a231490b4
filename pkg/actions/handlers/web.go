// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// maxErrorBody limits how much of a failed response ends up in a result
const maxErrorBody = 256

// HTTP sends a request and succeeds on any 2xx status
func (s *Set) HTTP(ctx context.Context, cfg actions.HTTP, token actions.CancelToken) actions.Result {
	if cfg.URL == "" {
		return actions.Failed("No URL specified")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(cfg.BodyType, cfg.Body)
	if err != nil {
		return actions.Failed("Invalid request body: %v", err)
	}

	timeout := DefaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return actions.Failed("Invalid request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	status, err := s.send(req)
	if err != nil {
		if token.IsCancelled() {
			return actions.Cancelled()
		}
		return actions.Failed("HTTP request failed: %v", err)
	}
	return actions.OkMessage("HTTP %d", status)
}

// encodeBody encodes an HTTP action body by type. Strings are sent as is
// unless bodyType asks for JSON.
func encodeBody(bodyType string, body interface{}) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch strings.ToLower(bodyType) {
	case "form":
		m, ok := body.(map[string]interface{})
		if !ok {
			return nil, "", fmt.Errorf("form body must be an object")
		}
		values := url.Values{}
		for k, v := range m {
			values.Set(k, fmt.Sprint(v))
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	case "text":
		return strings.NewReader(fmt.Sprint(body)), "text/plain", nil
	case "json":
	default:
		if s, ok := body.(string); ok {
			return strings.NewReader(s), "text/plain", nil
		}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}

// send performs req and returns an error for non-2xx statuses
func (s *Set) send(req *http.Request) (int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(bytes.TrimSpace(snippet)) > 0 {
			return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// postJSON posts payload to endpoint with optional headers
func (s *Set) postJSON(ctx context.Context, endpoint string, payload interface{}, headers map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	_, err = s.send(req)
	return err
}

// haService resolves a Home Assistant action to a service call
func haService(cfg actions.HomeAssistant) (domain, service string, data map[string]interface{}, err error) {
	data = map[string]interface{}{}
	if cfg.EntityID != "" {
		data["entity_id"] = cfg.EntityID
	}

	switch cfg.Operation {
	case actions.HAToggle, actions.HATurnOn, actions.HATurnOff:
		if cfg.EntityID == "" {
			return "", "", nil, fmt.Errorf("entityId is required")
		}
		return "homeassistant", cfg.Operation, data, nil

	case actions.HASetBrightness:
		if cfg.EntityID == "" || cfg.Brightness == nil {
			return "", "", nil, fmt.Errorf("entityId and brightness are required")
		}
		b := *cfg.Brightness
		if b < 0 {
			b = 0
		}
		if b > 255 {
			b = 255
		}
		data["brightness"] = b
		return "light", "turn_on", data, nil

	case actions.HARunScript:
		if cfg.EntityID == "" {
			return "", "", nil, fmt.Errorf("entityId is required")
		}
		return "script", "turn_on", data, nil

	case actions.HATriggerAutomation:
		if cfg.EntityID == "" {
			return "", "", nil, fmt.Errorf("entityId is required")
		}
		return "automation", "trigger", data, nil

	case actions.HACustom:
		cs := cfg.CustomService
		if cs == nil || cs.Domain == "" || cs.Service == "" {
			return "", "", nil, fmt.Errorf("customService domain and service are required")
		}
		for k, v := range cs.Data {
			data[k] = v
		}
		return cs.Domain, cs.Service, data, nil

	case actions.HACallService:
		domain, service, ok := strings.Cut(cfg.Service, ".")
		if !ok || domain == "" || service == "" {
			return "", "", nil, fmt.Errorf("service must be domain.service, got %q", cfg.Service)
		}
		for k, v := range cfg.ServiceData {
			data[k] = v
		}
		return domain, service, data, nil
	}
	return "", "", nil, fmt.Errorf("unknown operation %q", cfg.Operation)
}

// HomeAssistant calls a service or fires an event through the REST API
func (s *Set) HomeAssistant(ctx context.Context, cfg actions.HomeAssistant, token actions.CancelToken) actions.Result {
	if s.cfg.HomeAssistantURL == "" {
		return actions.Failed("Home Assistant is not configured")
	}
	base := strings.TrimRight(s.cfg.HomeAssistantURL, "/")
	headers := map[string]string{}
	if s.cfg.HomeAssistantToken != "" {
		headers["Authorization"] = "Bearer " + s.cfg.HomeAssistantToken
	}

	if cfg.Operation == actions.HAFireEvent {
		if cfg.EventType == "" {
			return actions.Failed("eventType is required")
		}
		data := cfg.ServiceData
		if data == nil {
			data = map[string]interface{}{}
		}
		endpoint := base + "/api/events/" + url.PathEscape(cfg.EventType)
		if err := s.postJSON(ctx, endpoint, data, headers); err != nil {
			return actions.Failed("Home Assistant request failed: %v", err)
		}
		return actions.OkMessage("Fired event %s", cfg.EventType)
	}

	domain, service, data, err := haService(cfg)
	if err != nil {
		return actions.Failed("Invalid Home Assistant action: %v", err)
	}
	endpoint := fmt.Sprintf("%s/api/services/%s/%s", base, url.PathEscape(domain), url.PathEscape(service))
	if err := s.postJSON(ctx, endpoint, data, headers); err != nil {
		return actions.Failed("Home Assistant request failed: %v", err)
	}
	return actions.OkMessage("Called %s.%s", domain, service)
}

// Workflow posts to a workflow engine webhook such as Node-RED
func (s *Set) Workflow(ctx context.Context, cfg actions.Workflow, token actions.CancelToken) actions.Result {
	if s.cfg.WorkflowURL == "" {
		return actions.Failed("Workflow engine is not configured")
	}
	if cfg.Endpoint == "" {
		return actions.Failed("No endpoint specified")
	}
	endpoint := strings.TrimRight(s.cfg.WorkflowURL, "/") + "/" + strings.TrimLeft(cfg.Endpoint, "/")

	var payload map[string]interface{}
	switch cfg.Operation {
	case actions.WorkflowTriggerFlow, actions.WorkflowCustom:
		payload = map[string]interface{}{}
		for k, v := range cfg.Payload {
			payload[k] = v
		}
		if cfg.FlowID != "" {
			payload["flowId"] = cfg.FlowID
		}
	case actions.WorkflowSendEvent:
		if cfg.EventName == "" {
			return actions.Failed("eventName is required")
		}
		payload = map[string]interface{}{
			"event":     cfg.EventName,
			"payload":   cfg.Payload,
			"timestamp": time.Now().UnixMilli(),
		}
	default:
		return actions.Failed("Unknown workflow operation %q", cfg.Operation)
	}

	if err := s.postJSON(ctx, endpoint, payload, nil); err != nil {
		return actions.Failed("Workflow request failed: %v", err)
	}
	return actions.OkMessage("Posted to %s", cfg.Endpoint)
}
