// Package camera talks to the HTTP control API of a camera bridge: it sets
// acquisition parameters, sends commands and polls status.
package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lsci-map-go/internal/config"
)

const (
	DefaultAPIVersion = "v1"
	module            = "camera"
)

// BuildPaths lists the URLs tried for one parameter, most specific first.
func BuildPaths(baseURL string, apiVersion string, kind string, param string) []string {
	baseURL = strings.TrimRight(baseURL, "/")
	apiVersion = strings.Trim(apiVersion, "/")
	kind = strings.Trim(kind, "/")
	param = strings.TrimLeft(param, "/")
	if baseURL == "" || kind == "" || param == "" {
		return nil
	}

	paths := make([]string, 0, 3)
	if apiVersion != "" {
		paths = append(paths, baseURL+"/"+module+"/api/"+apiVersion+"/"+kind+"/"+param)
		paths = append(paths, baseURL+"/api/"+apiVersion+"/"+module+"/"+kind+"/"+param)
	}
	paths = append(paths, baseURL+"/"+module+"/"+kind+"/"+param)
	return paths
}

func ConfigSet(ctx context.Context, baseURL string, apiVersion string, param string, value any) (int, string) {
	if baseURL == "" {
		return http.StatusBadRequest, "missing base url"
	}
	if param == "" {
		return http.StatusBadRequest, "missing parameter"
	}

	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return http.StatusBadRequest, "invalid value"
	}
	return doRequest(ctx, http.MethodPut, BuildPaths(baseURL, apiVersion, "config", param), payload, "application/json")
}

func ConfigGet(ctx context.Context, baseURL string, apiVersion string, param string) (int, string) {
	if baseURL == "" {
		return http.StatusBadRequest, "missing base url"
	}
	if param == "" {
		return http.StatusBadRequest, "missing parameter"
	}
	return doRequest(ctx, http.MethodGet, BuildPaths(baseURL, apiVersion, "config", param), nil, "")
}

func StatusGet(ctx context.Context, baseURL string, apiVersion string, param string) (int, string) {
	if baseURL == "" {
		return http.StatusBadRequest, "missing base url"
	}
	if param == "" {
		return http.StatusBadRequest, "missing parameter"
	}
	return doRequest(ctx, http.MethodGet, BuildPaths(baseURL, apiVersion, "status", param), nil, "")
}

// Configure pushes every non-zero setting to the bridge and stops at the
// first rejected one.
func Configure(ctx context.Context, baseURL string, apiVersion string, s config.CameraSettings) error {
	if baseURL == "" {
		return ErrMissingBaseURL
	}
	params := []struct {
		name  string
		value any
		set   bool
	}{
		{"exposure_us", s.ExposureUS, s.ExposureUS > 0},
		{"frame_rate", s.FrameRate, s.FrameRate > 0},
		{"pixel_format", s.PixelFormat, s.PixelFormat != ""},
		{"gain", s.Gain, s.Gain > 0},
	}
	for _, p := range params {
		if !p.set {
			continue
		}
		code, body := ConfigSet(ctx, baseURL, apiVersion, p.name, p.value)
		if code < 200 || code >= 300 {
			return &RequestError{Param: p.name, Status: code, Body: body}
		}
	}
	return nil
}

// Command sends arm, disarm or another bridge command.
func Command(ctx context.Context, baseURL string, apiVersion string, command string) error {
	if baseURL == "" {
		return ErrMissingBaseURL
	}
	if command == "" {
		return ErrMissingParameter
	}
	code, body := doRequest(ctx, http.MethodPut, BuildPaths(baseURL, apiVersion, "command", command), nil, "")
	if code < 200 || code >= 300 {
		return &RequestError{Param: command, Status: code, Body: body}
	}
	return nil
}

var (
	ErrMissingBaseURL   = &cameraError{"missing base url"}
	ErrMissingParameter = &cameraError{"missing parameter"}
)

type cameraError struct {
	msg string
}

func (e *cameraError) Error() string {
	return e.msg
}

// RequestError is a non-2xx answer from the bridge.
type RequestError struct {
	Param  string
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("camera %s: http %d: %s", e.Param, e.Status, e.Body)
}

func doRequest(ctx context.Context, method string, paths []string, payload []byte, contentType string) (int, string) {
	if len(paths) == 0 {
		return http.StatusBadRequest, "missing path"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	for _, path := range paths {
		var body io.Reader
		if len(payload) > 0 {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, path, body)
		if err != nil {
			continue
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			return resp.StatusCode, strings.TrimSpace(string(respBody))
		}
	}
	return http.StatusNotFound, "not found"
}
