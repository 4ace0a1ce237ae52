package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"aegisrt/internal/engine"
)

// defaultEndpoint is the loopback address the start command binds its
// status/metrics server to, and the one status/snapshot/inspect talk
// to by default.
const defaultEndpoint = "http://localhost:8885"

// checkServerRunning performs a quick health probe against a running
// aegisrt instance's status server, mirroring the teacher's
// CheckServerRunning pattern for its own aggregator server.
func checkServerRunning(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint + "/healthz")
	if err != nil {
		return fmt.Errorf("aegisrt is not running. Start it with: aegisrt start")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("aegisrt is not responding correctly (status: %d)", resp.StatusCode)
	}
	return nil
}

// fetchSnapshot retrieves the running instance's operational snapshot
// over HTTP.
func fetchSnapshot(endpoint string) (engine.Snapshot, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint + "/snapshot")
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("aegisrt is not running. Start it with: aegisrt start")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Snapshot{}, fmt.Errorf("snapshot request failed (status: %d)", resp.StatusCode)
	}

	var snap engine.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}
