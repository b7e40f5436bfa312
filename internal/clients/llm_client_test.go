package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "o1-mini", req.Model)
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)
		require.Equal(t, "hello", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"action\":\"none\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(srv.URL, "test-key")
	text, err := client.Complete(context.Background(), "o1-mini", "hello")
	require.NoError(t, err)
	require.Equal(t, `{"action":"none"}`, text)
}

func TestCompleteNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(srv.URL, "test-key")
	_, err := client.Complete(context.Background(), "o1-mini", "hello")
	require.ErrorIs(t, err, ErrModelTransport)
	require.Contains(t, err.Error(), "status 500")
	require.Contains(t, err.Error(), "overloaded")
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(srv.URL, "test-key")
	_, err := client.Complete(context.Background(), "o1-mini", "hello")
	require.ErrorIs(t, err, ErrModelTransport)
	require.Contains(t, err.Error(), "model not found")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(srv.URL, "test-key")
	_, err := client.Complete(context.Background(), "o1-mini", "hello")
	require.Error(t, err)
}

func TestCompleteMissingAPIKey(t *testing.T) {
	client := NewOpenAICompatibleClient("http://localhost", "")
	_, err := client.Complete(context.Background(), "o1-mini", "hello")
	require.Error(t, err)
}
