package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ServerMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/global.v1.common.fairness.compliance_report", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "input")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"allow": true}})
	}))
	defer srv.Close()

	d := NewServerDriver(srv.URL)
	res, err := d.Evaluate(context.Background(), "data.global.v1.common.fairness.compliance_report", nil, map[string]any{"foo": "bar"}, ModeProduction, "")
	require.NoError(t, err)
	require.Empty(t, res.Err)
	assert.Equal(t, true, res.Decision["result"].(map[string]any)["allow"])
}

func TestEvaluate_ServerMode_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	d := NewServerDriver(srv.URL)
	res, err := d.Evaluate(context.Background(), "data.x.compliance_report", nil, map[string]any{}, ModeProduction, "")
	require.NoError(t, err)
	assert.Contains(t, res.Err, "status 500")
}

func TestUploadPolicy_RequiresServerMode(t *testing.T) {
	d := &Driver{}
	err := d.UploadPolicy(context.Background(), "x", "package x")
	assert.Error(t, err)
}

func TestUploadPolicy_PutsContent(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/policies/fairness", r.URL.Path)
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewServerDriver(srv.URL)
	require.NoError(t, d.UploadPolicy(context.Background(), "fairness", "package fairness"))
	assert.Equal(t, "package fairness", gotBody)
}
