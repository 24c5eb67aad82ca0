package camera

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsci-map-go/internal/config"
)

func TestBuildPaths(t *testing.T) {
	got := BuildPaths("http://bridge/", "v1", "config", "/frame_rate")
	assert.Equal(t, []string{
		"http://bridge/camera/api/v1/config/frame_rate",
		"http://bridge/api/v1/camera/config/frame_rate",
		"http://bridge/camera/config/frame_rate",
	}, got)

	assert.Equal(t, []string{"http://bridge/camera/status/state"}, BuildPaths("http://bridge", "", "status", "state"))
	assert.Nil(t, BuildPaths("", "v1", "config", "x"))
}

func TestConfigureSendsSettings(t *testing.T) {
	var mu sync.Mutex
	got := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		got[r.URL.Path] = body["value"]
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Configure(context.Background(), srv.URL, DefaultAPIVersion, config.CameraSettings{
		ExposureUS:  5000,
		FrameRate:   120,
		PixelFormat: "Mono8",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"/camera/api/v1/config/exposure_us":  5000.0,
		"/camera/api/v1/config/frame_rate":   120.0,
		"/camera/api/v1/config/pixel_format": "Mono8",
	}, got)
}

func TestConfigureFallsBackToLegacyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/camera/config/frame_rate" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Configure(context.Background(), srv.URL, DefaultAPIVersion, config.CameraSettings{FrameRate: 30})
	assert.NoError(t, err)
}

func TestConfigureReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exposure out of range", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := Configure(context.Background(), srv.URL, DefaultAPIVersion, config.CameraSettings{ExposureUS: 1})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "exposure_us", reqErr.Param)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "exposure out of range", reqErr.Body)

	assert.Equal(t, ErrMissingBaseURL, Configure(context.Background(), "", "", config.CameraSettings{}))
}

func TestCommand(t *testing.T) {
	hits := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Command(context.Background(), srv.URL, DefaultAPIVersion, "arm"))
	assert.Equal(t, "PUT /camera/api/v1/command/arm", <-hits)
	assert.Equal(t, ErrMissingParameter, Command(context.Background(), srv.URL, DefaultAPIVersion, ""))
}

func TestPollReportsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/camera/api/v1/status/state":
			_, _ = w.Write([]byte(`{"value": "ARMED"}`))
		case "/camera/api/v1/status/stream":
			_, _ = w.Write([]byte(`[{"status": {"state": "Streaming"}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	updates := make(chan Status, 4)
	go Poll(ctx, srv.URL, DefaultAPIVersion, 10*time.Millisecond, func(s Status) {
		select {
		case updates <- s:
		default:
		}
	})

	select {
	case s := <-updates:
		assert.Equal(t, Status{Camera: "armed", Stream: "streaming"}, s)
	case <-ctx.Done():
		t.Fatal("no status update")
	}
}

func TestFindState(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"other": 1, "status": {"value": "idle"}}`), &decoded))
	assert.Equal(t, "idle", findState(decoded))
	assert.Equal(t, "", findState(map[string]any{"x": "y"}))
}
