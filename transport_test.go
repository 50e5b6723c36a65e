package freeplay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"freeplay"
)

func TestGetParsesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Get(context.Background(), srv.URL)

	assert.True(t, res.Ok())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"message": "ok"}, res.Body)
	assert.Empty(t, res.ErrorMessage)
}

func TestEmptyBodyBecomesEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Get(context.Background(), srv.URL)

	assert.True(t, res.Ok())
	require.NotNil(t, res.Body)
	assert.Empty(t, res.Body)
}

func TestPostSendsJSONPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"completion_id": "c-1"}`))
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Post(context.Background(), srv.URL, map[string]string{"input": "hello"})

	assert.True(t, res.Ok())
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, map[string]any{"input": "hello"}, received)
	assert.Equal(t, "c-1", res.Body["completion_id"])
}

func TestConnectionFailureYieldsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening any more

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})

	get := transport.Get(context.Background(), srv.URL)
	assert.Equal(t, 0, get.StatusCode)
	assert.NotEmpty(t, get.ErrorMessage)
	assert.NotNil(t, get.Body)

	post := transport.Post(context.Background(), srv.URL, map[string]string{"k": "v"})
	assert.Equal(t, 0, post.StatusCode)
	assert.NotEmpty(t, post.ErrorMessage)
	assert.NotNil(t, post.Body)
}

func TestMalformedBodyYieldsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Get(context.Background(), srv.URL)

	assert.Equal(t, 0, res.StatusCode)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestErrorStatusPassedThroughUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "bad payload"}`))
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Get(context.Background(), srv.URL)

	assert.False(t, res.Ok())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "bad payload", res.Body["message"])
	assert.Empty(t, res.ErrorMessage)
}

func TestVerboseLoggingDoesNotAlterResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.InfoLevel)
	quiet := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	verbose := freeplay.NewTransport(freeplay.TransportConfig{
		APIKey:  "sk-test",
		Logger:  zap.New(core),
		Verbose: true,
	})

	want := quiet.Get(context.Background(), srv.URL)
	got := verbose.Get(context.Background(), srv.URL)

	assert.Equal(t, want.StatusCode, got.StatusCode)
	assert.Equal(t, want.Body, got.Body)
	assert.Equal(t, want.ErrorMessage, got.ErrorMessage)
	assert.Equal(t, 2, logs.Len(), "expected one request and one response entry")
}

func TestResultDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prompt_template_id": "t-1", "prompt_template_version_id": "v-1"}`))
	}))
	defer srv.Close()

	transport := freeplay.NewTransport(freeplay.TransportConfig{APIKey: "sk-test"})
	res := transport.Get(context.Background(), srv.URL)
	require.True(t, res.Ok())

	var template freeplay.PromptTemplate
	require.NoError(t, res.Decode(&template))
	assert.Equal(t, "t-1", template.TemplateID)
	assert.Equal(t, "v-1", template.VersionID)
}
