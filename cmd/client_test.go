package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisrt/internal/engine"
)

func TestCheckServerRunning_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, checkServerRunning(srv.URL))
}

func TestCheckServerRunning_Unreachable(t *testing.T) {
	assert.Error(t, checkServerRunning("http://127.0.0.1:1"))
}

func TestFetchSnapshot_DecodesJSON(t *testing.T) {
	want := engine.Snapshot{
		Services: []engine.ServiceSnapshot{{Name: "db", State: "ACTIVE"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := fetchSnapshot(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "db", got.Services[0].Name)
}
