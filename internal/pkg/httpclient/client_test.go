package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "academypay-test" || r.FormValue("pf_payment_id") != "1089250" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("VALID"))
	}))
	defer srv.Close()

	c := New().WithRetry(0).WithTimeout(2*time.Second).WithHeader("User-Agent", "academypay-test")
	body, err := c.PostForm(context.Background(), srv.URL, map[string]string{"pf_payment_id": "1089250"})
	require.NoError(t, err)
	assert.Equal(t, "VALID", string(body))
}

func TestPostForm_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New().WithRetry(0).PostForm(context.Background(), srv.URL, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}
