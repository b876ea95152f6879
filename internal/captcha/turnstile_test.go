package captcha

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestVerifyBypassWithoutSecret(t *testing.T) {
	v := NewTurnstile("", quietLogger())
	assert.False(t, v.Enabled())
	assert.True(t, v.Verify(context.Background(), "", ""))
}

func TestVerifyMissingToken(t *testing.T) {
	v := NewTurnstile("secret", quietLogger()).WithEndpoint("http://127.0.0.1:1")
	assert.False(t, v.Verify(context.Background(), "", "1.2.3.4"))
}

func TestVerifySendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "1.2.3.4", r.PostForm.Get("remoteip"))
		if r.PostForm.Get("response") == "good" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := NewTurnstile("s3cret", quietLogger()).WithEndpoint(srv.URL)
	assert.True(t, v.Verify(context.Background(), "good", "1.2.3.4"))
	assert.False(t, v.Verify(context.Background(), "bad", "1.2.3.4"))
}

func TestVerifyOmitsEmptyRemoteIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, present := r.PostForm["remoteip"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	v := NewTurnstile("s3cret", quietLogger()).WithEndpoint(srv.URL)
	assert.True(t, v.Verify(context.Background(), "tok", ""))
}

func TestVerifyFailuresReject(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			v := NewTurnstile("s3cret", quietLogger()).WithEndpoint(srv.URL)
			assert.False(t, v.Verify(context.Background(), "tok", ""))
		})
	}

	v := NewTurnstile("s3cret", quietLogger()).WithEndpoint("http://127.0.0.1:1")
	assert.False(t, v.Verify(context.Background(), "tok", ""), "unreachable endpoint")
}
