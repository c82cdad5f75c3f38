package storage

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/vision"
)

func testNormalizer() *vision.Normalizer {
	return vision.NewNormalizer(config.ImageConfig{
		MaxEdge: 2048, Quality: 85,
		ClassifyMaxEdge: 512, ClassifyQuality: 70,
		ChecklistMaxEdge: 768, ChecklistQuality: 80,
	}, zap.NewNop())
}

func newTestFetcher(maxConcurrent int) *Fetcher {
	return NewFetcher(config.FetchConfig{
		Timeout:            "5s",
		MaxConcurrent:      maxConcurrent,
		AllowLocalhostURLs: true,
	}, testNormalizer(), zap.NewNop())
}

// fakeImage builds a payload above the minimum size that no decoder
// accepts, so the normalizer passes it through byte for byte.
func fakeImage(marker string) []byte {
	return append([]byte(marker), bytes.Repeat([]byte{0x5a}, 150)...)
}

func TestFetchAllDownloadsInOrder(t *testing.T) {
	payloads := map[string][]byte{
		"/a.jpg": fakeImage("first"),
		"/b.jpg": fakeImage("second"),
		"/c.jpg": fakeImage("third"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, fetchUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(5)
	got := f.FetchAll(context.Background(),
		[]string{srv.URL + "/a.jpg", srv.URL + "/b.jpg", srv.URL + "/c.jpg"})

	require.Len(t, got, 3)
	assert.Equal(t, payloads["/a.jpg"], got[0])
	assert.Equal(t, payloads["/b.jpg"], got[1])
	assert.Equal(t, payloads["/c.jpg"], got[2])
}

func TestFetchAllDropsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(bytes.Repeat([]byte{'x'}, 200))
		case "/tiny.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("short"))
		case "/good.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(fakeImage("good"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(5)
	got := f.FetchAll(context.Background(), []string{
		srv.URL + "/missing.jpg",
		srv.URL + "/page.html",
		srv.URL + "/tiny.jpg",
		srv.URL + "/good.jpg",
		"not a url at all ://",
	})

	require.Len(t, got, 1)
	assert.Equal(t, fakeImage("good"), got[0])
}

func TestFetchAllEmptyInput(t *testing.T) {
	f := newTestFetcher(5)
	assert.Nil(t, f.FetchAll(context.Background(), nil))
}

func TestFetchAllHonorsConcurrencyCap(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(fakeImage(r.URL.Path))
	}))
	defer srv.Close()

	f := newTestFetcher(2)
	urls := make([]string, 6)
	for i := range urls {
		urls[i] = srv.URL + "/img" + string(rune('a'+i)) + ".png"
	}
	got := f.FetchAll(context.Background(), urls)

	require.Len(t, got, 6)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestValidateURL(t *testing.T) {
	blocked := NewFetcher(config.FetchConfig{Timeout: "5s"}, testNormalizer(), zap.NewNop())
	allowed := newTestFetcher(5)

	t.Run("AcceptsPublicHTTPAndHTTPS", func(t *testing.T) {
		assert.NoError(t, blocked.validateURL("https://example.com/house.jpg"))
		assert.NoError(t, blocked.validateURL("http://example.com/house.jpg"))
		assert.NoError(t, blocked.validateURL("http://8.8.8.8/house.jpg"))
	})

	t.Run("RejectsOtherSchemes", func(t *testing.T) {
		assert.Error(t, blocked.validateURL("ftp://example.com/house.jpg"))
		assert.Error(t, blocked.validateURL("file:///etc/passwd"))
	})

	t.Run("RejectsMissingHostname", func(t *testing.T) {
		assert.Error(t, blocked.validateURL("http://"))
	})

	t.Run("RejectsOverlongURL", func(t *testing.T) {
		long := "https://example.com/" + strings.Repeat("a", maxURLLength)
		assert.Error(t, blocked.validateURL(long))
	})

	t.Run("BlocksPrivateAddressesByDefault", func(t *testing.T) {
		for _, u := range []string{
			"http://localhost/house.jpg",
			"http://127.0.0.1/house.jpg",
			"http://[::1]/house.jpg",
			"http://10.0.0.5/house.jpg",
			"http://192.168.1.10/house.jpg",
			"http://172.16.0.1/house.jpg",
		} {
			assert.Error(t, blocked.validateURL(u), u)
		}
	})

	t.Run("AllowsPrivateAddressesWhenConfigured", func(t *testing.T) {
		assert.NoError(t, allowed.validateURL("http://localhost/house.jpg"))
		assert.NoError(t, allowed.validateURL("http://127.0.0.1:8080/house.jpg"))
	})
}

func TestIsImageContentType(t *testing.T) {
	assert.True(t, isImageContentType("image/jpeg"))
	assert.True(t, isImageContentType("IMAGE/PNG"))
	assert.True(t, isImageContentType("image/webp; charset=binary"))
	assert.True(t, isImageContentType("image/gif"))
	assert.False(t, isImageContentType("text/html"))
	assert.False(t, isImageContentType(""))
	assert.False(t, isImageContentType("application/octet-stream"))
}
