// Package llm fetches camera snapshots from the Malaysian highway
// authority (Lembaga Lebuhraya Malaysia) CCTV endpoint.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Payloads under this size are upstream error blobs, not JPEG frames.
const minImageBytes = 100

const dataURLPrefix = "data:image/jpeg;base64,"

var base64Pattern = regexp.MustCompile(`data:image/jpeg;base64,([^"'}\s]+)`)

// Config controls upstream collector behavior.
type Config struct {
	BaseURL   string
	UserAgent string
	Referer   string
	Timeout   time.Duration
}

// Fetcher implements cctv.CatalogFetcher against the LLM ajax endpoint.
type Fetcher struct {
	cfg           Config
	highways      map[string]cctv.Highway
	clock         cctv.Clock
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Fetcher. The highways map supplies display names for
// cameras the upstream feed leaves unnamed.
func New(cfg Config, highways map[string]cctv.Highway, clock cctv.Clock, logger *zap.Logger) *Fetcher {
	// The same highway URL is fetched every cycle, so revisits must be
	// allowed.
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; omit it to keep the collector synchronous.
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		highways:      highways,
		clock:         clock,
		logger:        logger.Named("catalog"),
		baseCollector: c,
	}
}

// FetchCatalog downloads one highway's feed and extracts every decodable
// snapshot. Camera IDs are synthesized as {code}-{n}, 1-based, in feed
// order.
func (f *Fetcher) FetchCatalog(ctx context.Context, highwayCode string) ([]cctv.CameraSnapshot, error) {
	highway, ok := f.highways[highwayCode]
	if !ok {
		return nil, fmt.Errorf("unknown highway code: %s", highwayCode)
	}

	body, err := f.fetch(ctx, highwayCode)
	if err != nil {
		return nil, &cctv.UpstreamFetchError{HighwayCode: highwayCode, Err: err}
	}

	observedAt := f.clock.Now()
	snapshots := f.parseJSON(body, highway, observedAt)
	if snapshots == nil {
		snapshots = f.parseHTML(body, highway, observedAt)
	}
	if snapshots == nil {
		snapshots = f.parseRaw(body, highway, observedAt)
	}
	if len(snapshots) == 0 {
		return nil, &cctv.UpstreamFetchError{
			HighwayCode: highwayCode,
			Err:         fmt.Errorf("no camera images in upstream response"),
		}
	}

	f.logger.Debug("fetched upstream catalog",
		zap.String("highway", highwayCode),
		zap.Int("cameras", len(snapshots)))
	return snapshots, nil
}

// fetch runs a single GET through a cloned collector and returns the
// response body.
func (f *Fetcher) fetch(ctx context.Context, highwayCode string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		if f.cfg.Referer != "" {
			r.Headers.Set("Referer", f.cfg.Referer)
		}
		r.Headers.Set("Accept", "*/*")
		r.Headers.Set("X-Requested-With", "XMLHttpRequest")
	})
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	url := fmt.Sprintf("%s?h=%s", f.cfg.BaseURL, highwayCode)
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("catalog fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
}

type upstreamCamera struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// parseJSON handles the endpoint's occasional JSON shape, either a list
// or a single object. Returns nil when the body is not JSON.
func (f *Fetcher) parseJSON(body []byte, highway cctv.Highway, observedAt time.Time) []cctv.CameraSnapshot {
	var list []upstreamCamera
	if err := json.Unmarshal(body, &list); err != nil {
		var single upstreamCamera
		if err := json.Unmarshal(body, &single); err != nil {
			return nil
		}
		list = []upstreamCamera{single}
	}

	var snapshots []cctv.CameraSnapshot
	for i, cam := range list {
		data, err := decodeDataURL(cam.Image)
		if err != nil {
			f.logger.Debug("skipping undecodable json image",
				zap.String("highway", highway.Code), zap.Int("index", i), zap.Error(err))
			continue
		}
		id := cam.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", highway.Code, i+1)
		}
		name := cam.Name
		if name == "" {
			name = fmt.Sprintf("%s Camera %d", highway.Name, i+1)
		}
		snapshots = append(snapshots, cctv.CameraSnapshot{
			HighwayCode: highway.Code,
			CameraID:    id,
			Name:        name,
			Image:       data,
			ObservedAt:  observedAt,
		})
	}
	return snapshots
}

// parseHTML extracts inline base64 images from img tags, pairing them
// with the camera name divs the feed places alongside.
func (f *Fetcher) parseHTML(body []byte, highway cctv.Highway, observedAt time.Time) []cctv.CameraSnapshot {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var names []string
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if strings.Contains(style, "width:320px") {
			if text := strings.TrimSpace(s.Text()); text != "" {
				names = append(names, text)
			}
		}
	})

	var snapshots []cctv.CameraSnapshot
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !strings.Contains(src, dataURLPrefix) {
			return
		}
		data, err := decodeDataURL(src)
		if err != nil {
			f.logger.Debug("skipping undecodable img tag",
				zap.String("highway", highway.Code), zap.Int("index", i), zap.Error(err))
			return
		}
		n := len(snapshots) + 1
		name := fmt.Sprintf("%s Camera %d", highway.Name, n)
		if n-1 < len(names) {
			name = names[n-1]
		}
		snapshots = append(snapshots, cctv.CameraSnapshot{
			HighwayCode: highway.Code,
			CameraID:    fmt.Sprintf("%s-%d", highway.Code, n),
			Name:        name,
			Image:       data,
			ObservedAt:  observedAt,
		})
	})
	return snapshots
}

// parseRaw scans the body for base64 payloads directly. Last resort for
// responses that are neither JSON nor well-formed HTML.
func (f *Fetcher) parseRaw(body []byte, highway cctv.Highway, observedAt time.Time) []cctv.CameraSnapshot {
	matches := base64Pattern.FindAllSubmatch(body, -1)
	var snapshots []cctv.CameraSnapshot
	for _, m := range matches {
		data, err := decodeBase64(string(m[1]))
		if err != nil {
			continue
		}
		n := len(snapshots) + 1
		snapshots = append(snapshots, cctv.CameraSnapshot{
			HighwayCode: highway.Code,
			CameraID:    fmt.Sprintf("%s-%d", highway.Code, n),
			Name:        fmt.Sprintf("%s Camera %d", highway.Name, n),
			Image:       data,
			ObservedAt:  observedAt,
		})
	}
	return snapshots
}

func decodeDataURL(src string) ([]byte, error) {
	_, payload, found := strings.Cut(src, "base64,")
	if !found {
		return nil, fmt.Errorf("not a base64 data url")
	}
	return decodeBase64(payload)
}

func decodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	if len(data) < minImageBytes {
		return nil, fmt.Errorf("image too small (%d bytes), likely an upstream error blob", len(data))
	}
	return data, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
