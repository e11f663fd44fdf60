package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/aimarket/internal/httpserver"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/listing"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store/memory"
)

func newAPI(t *testing.T) string {
	t.Helper()
	st, err := memory.New(memory.Options{})
	require.NoError(t, err)

	log := logger.NewNop()
	srv := httptest.NewServer(httpserver.NewRouter(log, deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		TimeNow:        time.Now,
		AllowedCIDRS:   []string{"127.0.0.1/32", "::1/128"},
		Listings:       listing.NewService(st, listing.Options{StrictWrites: true, Logger: log}),
		MaxBodyBytes:   64 << 10,
		RequestTimeout: time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func ctl(t *testing.T, api string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"-api", api}, args...), &out)
	return out.String(), err
}

func TestSubmitApproveList(t *testing.T) {
	api := newAPI(t)
	state := filepath.Join(t.TempDir(), "ratelimit.json")

	out, err := ctl(t, api, "submit", "-state", state,
		"-name", "Acme", "-url", "acme.fi", "-description", "Chat assistant",
		"-use-case", "Chatbot, CRM", "-region", "Finland",
		"-added-by", "Ann", "-email", "ann@acme.fi")
	require.NoError(t, err)
	assert.Contains(t, out, `submitted "Acme"`)

	out, err = ctl(t, api, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no listings")

	out, err = ctl(t, api, "list", "-all")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	id := strings.Fields(lines[1])[0]

	out, err = ctl(t, api, "approve", "-by", "mod", id)
	require.NoError(t, err)
	assert.Contains(t, out, "approved")

	out, err = ctl(t, api, "list", "-use-case", "crm")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "https://acme.fi")

	out, err = ctl(t, api, "use-cases")
	require.NoError(t, err)
	assert.Equal(t, "Chatbot\nCRM\n", out)

	_, err = ctl(t, api, "delete", id)
	require.NoError(t, err)
	_, err = ctl(t, api, "delete", id)
	assert.Error(t, err)
}

func TestSubmitShowsValidationAlert(t *testing.T) {
	api := newAPI(t)
	state := filepath.Join(t.TempDir(), "ratelimit.json")

	_, err := ctl(t, api, "submit", "-state", state,
		"-name", "Acme", "-url", "acme.fi", "-description", "d",
		"-use-case", "CRM", "-region", "Europe", "-added-by", "Ann", "-email", "ann@acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestSubmitRequiresRegion(t *testing.T) {
	api := newAPI(t)
	state := filepath.Join(t.TempDir(), "ratelimit.json")

	_, err := ctl(t, api, "submit", "-state", state,
		"-name", "Acme", "-url", "acme.fi", "-description", "d",
		"-use-case", "CRM", "-added-by", "Ann", "-email", "ann@acme.fi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please fill in all required fields")

	out, err := ctl(t, api, "list", "-all")
	require.NoError(t, err)
	assert.NotContains(t, out, "Acme")
}

func TestVersion(t *testing.T) {
	out, err := ctl(t, "http://127.0.0.1:1", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "aimarketctl dev"), out)
}

func TestUsageErrors(t *testing.T) {
	_, err := ctl(t, "http://127.0.0.1:1")
	assert.Error(t, err)

	_, err = ctl(t, "http://127.0.0.1:1", "frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	_, err = ctl(t, "http://127.0.0.1:1", "approve")
	assert.ErrorContains(t, err, "exactly one")
}
