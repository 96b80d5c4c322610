package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayURL_SignedAndVerifiable(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://img.example.com/", SigningKey: "k", URLTTL: time.Minute})
	fixed := time.Unix(1_900_000_000, 0)
	c.now = func() time.Time { return fixed }

	raw := c.DisplayURL("tours/cover 1.jpg")
	require.True(t, strings.HasPrefix(raw, "https://img.example.com/images/"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.True(t, c.Verify("tours/cover 1.jpg", q.Get("expires"), q.Get("signature")))
	assert.False(t, c.Verify("tours/other.jpg", q.Get("expires"), q.Get("signature")))

	c.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	assert.False(t, c.Verify("tours/cover 1.jpg", q.Get("expires"), q.Get("signature")))

	assert.Empty(t, c.DisplayURL(""))
}

func TestRelease_SendsSignedDestroyPerImage(t *testing.T) {
	var mu sync.Mutex
	var released []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/destroy", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("signature"))

		id := r.PostForm.Get("public_id")
		if id == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if id == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		released = append(released, id)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SigningKey: "k"})

	err := c.Release(context.Background(), []string{"a", "", "gone", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, released)

	err = c.Release(context.Background(), []string{"broken", "c"})
	assert.ErrorContains(t, err, "broken")
	assert.Contains(t, released, "c")
}
