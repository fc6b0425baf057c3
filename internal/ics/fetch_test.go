package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	art, err := Build(paracetamol(), fixedNow)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/"+art.FileName {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", art.ContentType)
		_, _ = w.Write(art.Bytes)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())

	body, err := f.Fetch(context.Background(), srv.URL+"/calendars/"+art.FileName)
	require.NoError(t, err)
	assert.Equal(t, art.Bytes, body)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.ics")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestHTTPURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.ics", HTTPURL("webcal://cdn.example.com/a.ics"))
	assert.Equal(t, "https://cdn.example.com/a.ics", HTTPURL("WEBCAL://cdn.example.com/a.ics"))
	assert.Equal(t, "http://localhost/a.ics", HTTPURL("http://localhost/a.ics"))

	assert.Equal(t, "http://127.0.0.1:8080/b/calendars/a.ics", HTTPURL("webcal://127.0.0.1:8080/b/calendars/a.ics"))
	assert.Equal(t, "http://localhost:8080/a.ics", HTTPURL("webcal://localhost:8080/a.ics"))
	assert.Equal(t, "http://[::1]:8080/a.ics", HTTPURL("webcal://[::1]:8080/a.ics"))
	assert.Equal(t, "https://127.0.0.1.example.com/a.ics", HTTPURL("webcal://127.0.0.1.example.com/a.ics"))
}

func TestFetcher_FetchLoopbackWebcal(t *testing.T) {
	art, err := Build(paracetamol(), fixedNow)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", art.ContentType)
		_, _ = w.Write(art.Bytes)
	}))
	defer srv.Close()

	webcal := "webcal://" + strings.TrimPrefix(srv.URL, "http://") + "/medicine-calendar/calendars/" + art.FileName
	body, err := NewFetcher(srv.Client()).Fetch(context.Background(), webcal)
	require.NoError(t, err)
	assert.Equal(t, art.Bytes, body)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/path/to/private.ics?token=abcd"))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
