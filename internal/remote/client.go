// Package remote is a stateless client for the simulation server. Every
// method issues exactly one request; timing and retry decisions belong to
// the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/spatial"
)

const (
	pathStart           = "/api/sim/start"
	pathReset           = "/api/sim/reset"
	pathLatest          = "/api/sim/latest"
	pathRealOD          = "/api/sim/real-od"
	pathHeatmapGenerate = "/api/heatmap/generate"
	pathHeatmapData     = "/api/heatmap/data"

	maxErrorBody = 16 * 1024
	tokenTTL     = time.Minute
)

// Config configures a Client
type Config struct {
	BaseURL string
	Timeout time.Duration

	// AuthSecret, when set, signs a short-lived HS256 bearer token for
	// every request
	AuthSecret string
	ClientID   string

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to the simulation server
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *log.Logger
}

// NewClient creates a client for cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("empty remote base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "tamos-client"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg, httpClient: hc, log: logger}, nil
}

// StartSimulation asks the server to begin generating entity positions
func (c *Client) StartSimulation(ctx context.Context) error {
	return c.command(ctx, "start simulation", http.MethodGet, pathStart, nil)
}

// ResetSimulation clears the server's simulation data
func (c *Client) ResetSimulation(ctx context.Context) error {
	return c.command(ctx, "reset simulation", http.MethodDelete, pathReset, nil)
}

// TriggerHeatmapGeneration asks the server to regenerate heatmap data
func (c *Client) TriggerHeatmapGeneration(ctx context.Context) error {
	return c.command(ctx, "generate heatmap", http.MethodPost, pathHeatmapGenerate, []byte("{}"))
}

// FetchLatestEntity returns the most recent entity position
func (c *Client) FetchLatestEntity(ctx context.Context) (models.EntityPosition, error) {
	const op = "fetch latest entity"
	body, err := c.fetch(ctx, op, pathLatest)
	if err != nil {
		return models.EntityPosition{}, err
	}

	pos, err := DecodeLatestEntity(body)
	if err != nil {
		return models.EntityPosition{}, decodeErr(op, err)
	}
	if !spatial.ValidCoordinate(pos.Latitude, pos.Longitude) {
		c.log.Printf("[remote] entity %s reported out-of-range position %.6f,%.6f", pos.ID, pos.Latitude, pos.Longitude)
	}
	return pos, nil
}

// FetchHeatmap returns the heatmap document without inspecting its
// structure. A body that is not JSON is a decode error.
func (c *Client) FetchHeatmap(ctx context.Context) (models.HeatmapPayload, error) {
	body, err := c.fetchJSON(ctx, "fetch heatmap", pathHeatmapData)
	if err != nil {
		return nil, err
	}
	return models.HeatmapPayload(body), nil
}

// FetchRouteData returns the real-road trip document without inspecting
// its structure. A body that is not JSON is a decode error.
func (c *Client) FetchRouteData(ctx context.Context) (models.RoutePayload, error) {
	body, err := c.fetchJSON(ctx, "fetch route data", pathRealOD)
	if err != nil {
		return nil, err
	}
	return models.RoutePayload(body), nil
}

// DecodeLatestEntity decodes a latest-entity response. The document must be
// an object with a non-empty string objectId; non-numeric coordinates read
// as zero.
func DecodeLatestEntity(body []byte) (models.EntityPosition, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.EntityPosition{}, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return models.EntityPosition{}, errors.New("response is not an object")
	}

	var resp models.LatestEntityResponse
	resp.ObjectID, _ = obj["objectId"].(string)
	resp.Latitude, _ = obj["latitude"].(float64)
	resp.Longitude, _ = obj["longitude"].(float64)
	if resp.ObjectID == "" {
		return models.EntityPosition{}, errors.New("missing objectId")
	}
	return resp.Position(), nil
}

func (c *Client) command(ctx context.Context, op, method, path string, body []byte) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return transportErr(op, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportErr(op, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, op, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, transportErr(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, transportErr(op, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(op, err)
	}
	return body, nil
}

// fetchJSON fetches path and checks the body is one JSON document, so
// opaque payloads can be embedded verbatim downstream
func (c *Client) fetchJSON(ctx context.Context, op, path string) ([]byte, error) {
	body, err := c.fetch(ctx, op, path)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, decodeErr(op, errors.New("response is not a JSON document"))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.cfg.AuthSecret != "" {
		token, err := c.signToken(time.Now())
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

func (c *Client) signToken(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   c.cfg.ClientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.AuthSecret))
}
