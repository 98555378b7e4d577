package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

var testHighways = map[string]cctv.Highway{
	"DUKE": {Code: "DUKE", Name: "Duta-Ulu Klang Expressway", HighwayID: "E33"},
}

var testNow = time.Date(2025, 3, 26, 13, 30, 51, 0, time.Local)

func fakeJPEG(fill byte) []byte {
	return append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{fill}, 200)...)
}

func dataURL(img []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher := New(Config{
		BaseURL:   server.URL,
		UserAgent: "test-agent",
		Referer:   "https://example.test/",
		Timeout:   5 * time.Second,
	}, testHighways, fixedClock{t: testNow}, zap.NewNop())
	return fetcher, server
}

func TestFetchCatalogParsesHTMLWithNameDivs(t *testing.T) {
	imgA := fakeJPEG(0xaa)
	imgB := fakeJPEG(0xbb)
	page := fmt.Sprintf(`<html><body>
		<div style="width:320px;">KM 5.2 Segambut</div>
		<img src=%q/>
		<div style="width:320px;">KM 8.1 Sentul Pasar</div>
		<img src=%q/>
	</body></html>`, dataURL(imgA), dataURL(imgB))

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "DUKE", r.URL.Query().Get("h"))
		require.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		fmt.Fprint(w, page)
	})

	snapshots, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	require.Equal(t, "DUKE-1", snapshots[0].CameraID)
	require.Equal(t, "KM 5.2 Segambut", snapshots[0].Name)
	require.Equal(t, imgA, snapshots[0].Image)
	require.Equal(t, testNow, snapshots[0].ObservedAt)

	require.Equal(t, "DUKE-2", snapshots[1].CameraID)
	require.Equal(t, "KM 8.1 Sentul Pasar", snapshots[1].Name)
	require.Equal(t, imgB, snapshots[1].Image)
}

func TestFetchCatalogFallsBackToNumberedNames(t *testing.T) {
	page := fmt.Sprintf(`<html><body><img src=%q/></body></html>`, dataURL(fakeJPEG(0x11)))

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	})

	snapshots, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "Duta-Ulu Klang Expressway Camera 1", snapshots[0].Name)
}

func TestFetchCatalogSkipsTinyImages(t *testing.T) {
	tiny := []byte("err")
	page := fmt.Sprintf(`<html><body><img src=%q/><img src=%q/></body></html>`,
		dataURL(tiny), dataURL(fakeJPEG(0x22)))

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	})

	snapshots, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "DUKE-1", snapshots[0].CameraID)
}

func TestFetchCatalogParsesJSONList(t *testing.T) {
	img := fakeJPEG(0x33)
	body, err := json.Marshal([]map[string]string{
		{"id": "DUKE-CAM-7", "name": "Hartamas", "image": dataURL(img)},
	})
	require.NoError(t, err)

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	snapshots, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "DUKE-CAM-7", snapshots[0].CameraID)
	require.Equal(t, "Hartamas", snapshots[0].Name)
	require.Equal(t, img, snapshots[0].Image)
}

func TestFetchCatalogRawBase64Fallback(t *testing.T) {
	img := fakeJPEG(0x44)
	body := fmt.Sprintf(`window.feed = {img: "%s"};`, dataURL(img))

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})

	snapshots, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, img, snapshots[0].Image)
}

func TestFetchCatalogEmptyResponseIsUpstreamError(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>no cameras tonight</body></html>")
	})

	_, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.Error(t, err)
	var upstreamErr *cctv.UpstreamFetchError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, "DUKE", upstreamErr.HighwayCode)
}

func TestFetchCatalogServerErrorIsUpstreamError(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := fetcher.FetchCatalog(context.Background(), "DUKE")
	require.Error(t, err)
	var upstreamErr *cctv.UpstreamFetchError
	require.True(t, errors.As(err, &upstreamErr))
}

func TestFetchCatalogRejectsUnknownHighway(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "unreachable")
	})

	_, err := fetcher.FetchCatalog(context.Background(), "NOPE")
	require.Error(t, err)
}
