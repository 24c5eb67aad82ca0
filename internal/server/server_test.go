package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/types"
)

func TestHandleConfig(t *testing.T) {
	srv := New(config.AppConfig{
		Port:      9999,
		Endpoint:  "tcp://localhost:31001",
		MaxFrames: 500,
		Duration:  10 * time.Second,
	}, nil, nil, nil)

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["port"].(float64) != 9999 {
		t.Fatalf("unexpected port: %v", payload["port"])
	}
	if payload["max_frames"].(float64) != 500 {
		t.Fatalf("unexpected max_frames: %v", payload["max_frames"])
	}
	if payload["duration_seconds"].(float64) != 10 {
		t.Fatalf("unexpected duration_seconds: %v", payload["duration_seconds"])
	}
}

func TestHandleStatusCountsClients(t *testing.T) {
	srv := New(config.AppConfig{}, func() map[string]any {
		return map[string]any{"stream": "receiving"}
	}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["stream"] != "receiving" || payload["ws_clients"].(float64) != 0 {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	srv := New(config.AppConfig{Port: 1}, nil, func() any {
		return types.ProgressSnapshot{Type: "progress", FramesWritten: 3}
	}, nil)
	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages := make(chan any, 1)
	go srv.Broadcast(ctx, messages)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read config: %v", err)
	}
	if first["type"] != "config" {
		t.Fatalf("expected config first, got %v", first)
	}

	if err := conn.WriteJSON(map[string]any{"type": "snapshot_request"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var snap types.ProgressSnapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.FramesWritten != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	messages <- types.ProgressSnapshot{Type: "progress", FramesWritten: 9, MeanContrast: 0.4}
	var progress types.ProgressSnapshot
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.FramesWritten != 9 || progress.MeanContrast != 0.4 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestIndexIsEmbedded(t *testing.T) {
	handler, err := New(config.AppConfig{}, nil, nil, nil).Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "/ws") {
		t.Fatalf("unexpected index: %d %q", rec.Code, rec.Body.String())
	}
}
