// Package faceapi talks to the face distance service used to verify
// biometric captures.
package faceapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/breaker"
)

var ErrNoFace = errors.New("no face detected")

type Client struct {
	baseURL   string
	threshold float64
	http      *http.Client
	breaker   *breaker.Breaker[float64]
}

func NewClient(baseURL string, threshold float64, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		threshold: threshold,
		http:      &http.Client{Timeout: timeout},
		breaker:   breaker.New[float64](breaker.Settings{Name: "face-api", Timeout: time.Minute}),
	}
}

type distanceRequest struct {
	Image1 string `json:"image1_b64"`
	Image2 string `json:"image2_b64"`
}

type distanceResponse struct {
	Distance *float64 `json:"distance"`
	Error    string   `json:"error"`
}

// Distance returns the embedding distance between two face images. Lower
// is more similar.
func (c *Client) Distance(ctx context.Context, a, b []byte) (float64, error) {
	body, err := json.Marshal(distanceRequest{
		Image1: base64.StdEncoding.EncodeToString(a),
		Image2: base64.StdEncoding.EncodeToString(b),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode face request: %w", err)
	}

	return c.breaker.Execute(func() (float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/faces/distance", bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return 0, err
		}
		if resp.StatusCode >= 500 {
			return 0, fmt.Errorf("face api returned http %d", resp.StatusCode)
		}

		var out distanceResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return 0, fmt.Errorf("failed to decode face response: %w", err)
		}
		if out.Distance == nil {
			if out.Error != "" {
				return 0, fmt.Errorf("%w: %s", ErrNoFace, out.Error)
			}
			return 0, ErrNoFace
		}
		return *out.Distance, nil
	})
}

// Match implements evidence.Matcher.
func (c *Client) Match(ctx context.Context, tpl evidence.Template, enrolled, probe []byte) (bool, error) {
	d, err := c.Distance(ctx, enrolled, probe)
	if err != nil {
		if errors.Is(err, ErrNoFace) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", evidence.ErrBiometricUnavailable, err)
	}
	return d <= c.threshold, nil
}

// HashMatcher accepts a probe only when it is byte-identical to the
// enrolled template. It serves deployments without a face service.
type HashMatcher struct{}

func (HashMatcher) Match(ctx context.Context, tpl evidence.Template, enrolled, probe []byte) (bool, error) {
	return tpl.SHA256 == evidence.HashHex(probe), nil
}
