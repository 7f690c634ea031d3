// Package upstream is the client for the telemetry data API: the species
// inventory, project citations, per-layer GeoJSON and species photos.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/metrics"
)

// DefaultMediaURL lists species photos tagged with an aphiaID caption.
const DefaultMediaURL = "https://secoora.org/wp-json/wp/v2/media?per_page=100&search=aphiaID&_fields=caption,media_details"

var (
	// ErrNotFound is returned when the API has no data for a request.
	ErrNotFound = errors.New("upstream: not found")
	// ErrUpstream is returned for any other non-2xx response.
	ErrUpstream = errors.New("upstream: bad response")
)

// Config configures a Client.
type Config struct {
	BaseURL  string // data API root, e.g. https://atp.example.org
	MediaURL string // photo listing; DefaultMediaURL when empty
	Timeout  time.Duration
	HTTP     *http.Client
	Logger   *slog.Logger
}

// Client talks to the data API. Concurrent identical GETs share one request.
type Client struct {
	baseURL  string
	mediaURL string
	http     *http.Client
	logger   *slog.Logger
	group    singleflight.Group
}

// New creates a client.
func New(cfg Config) *Client {
	hc := cfg.HTTP
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	mediaURL := cfg.MediaURL
	if mediaURL == "" {
		mediaURL = DefaultMediaURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: cfg.BaseURL, mediaURL: mediaURL, http: hc, logger: logger}
}

// get fetches rawURL, collapsing concurrent calls for the same URL. The
// shared fetch is detached from the caller's cancellation so one caller
// going away does not fail the others; each caller still stops waiting when
// its own ctx ends.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	ch := c.group.DoChan(rawURL, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), endpoint, rawURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("upstream request shared", "url", rawURL)
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) fetch(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, rawURL, resp.StatusCode)
	}
	return body, nil
}

// Inventory fetches the full availability inventory.
func (c *Client) Inventory(ctx context.Context) (*inventory.Inventory, error) {
	body, err := c.get(ctx, "inventory", c.baseURL+"/atp/inventory")
	if err != nil {
		return nil, err
	}
	inv, err := inventory.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return inv, nil
}

// Citation describes how to credit a project's data.
type Citation struct {
	Shortname string `json:"shortname" doc:"Short project name"`
	Citation  string `json:"citation" doc:"Full citation text"`
	Website   string `json:"website,omitempty" doc:"Project website"`
}

// Citations fetches project code -> citation.
func (c *Client) Citations(ctx context.Context) (map[string]Citation, error) {
	body, err := c.get(ctx, "citations", c.baseURL+"/atp/citations")
	if err != nil {
		return nil, err
	}
	out := map[string]Citation{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding citations: %w", err)
	}
	return out, nil
}

// LayerQuery selects one layer's GeoJSON.
type LayerQuery struct {
	SpeciesID int
	Type      string // distribution or range
	Year      inventory.Period
	Month     inventory.Period
	Project   string
}

// URL builds /atp/{species}/{type}/{year}; month and project are only sent
// when they narrow the selection.
func (q LayerQuery) URL(base string) string {
	u := fmt.Sprintf("%s/atp/%d/%s/%s", base, q.SpeciesID, url.PathEscape(q.Type), q.Year)
	params := url.Values{}
	if !q.Month.IsAll() {
		params.Set("month", strconv.Itoa(q.Month.Int()))
	}
	if q.Project != "" && q.Project != inventory.AllProjects {
		params.Set("project", q.Project)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Layer fetches the feature collection for one layer.
func (c *Client) Layer(ctx context.Context, q LayerQuery) (*geojson.FeatureCollection, error) {
	body, err := c.get(ctx, "layer", q.URL(c.baseURL))
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parsing layer geojson: %w", err)
	}
	return fc, nil
}

// MediaSize is one rendition of a photo.
type MediaSize struct {
	SourceURL string `json:"source_url" doc:"Image URL"`
	Width     int    `json:"width" doc:"Width in pixels"`
	Height    int    `json:"height" doc:"Height in pixels"`
}

// Media is the photo metadata for a species.
type Media struct {
	Width  int                  `json:"width" doc:"Original width"`
	Height int                  `json:"height" doc:"Original height"`
	File   string               `json:"file,omitempty" doc:"Original file path"`
	Sizes  map[string]MediaSize `json:"sizes,omitempty" doc:"Available renditions by size name"`
}

var aphiaCaption = regexp.MustCompile(`aphiaID:\s?(\d+)`)

// Photos fetches the photo listing keyed by species ID. Entries whose
// caption carries no aphiaID are skipped.
func (c *Client) Photos(ctx context.Context) (map[int]Media, error) {
	body, err := c.get(ctx, "photos", c.mediaURL)
	if err != nil {
		return nil, err
	}
	var listing []struct {
		Caption struct {
			Rendered string `json:"rendered"`
		} `json:"caption"`
		MediaDetails Media `json:"media_details"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding photos: %w", err)
	}
	out := make(map[int]Media, len(listing))
	for _, e := range listing {
		m := aphiaCaption.FindStringSubmatch(e.Caption.Rendered)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[id] = e.MediaDetails
	}
	return out, nil
}
