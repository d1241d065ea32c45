// Package hikcloud reads access-control punches from the Hik-Connect
// cloud API.
package hikcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/breaker"
)

const (
	tokenPath   = "/api/hccgw/platform/v1/token/get"
	recordsPath = "/api/hccgw/acs/v1/event/certificaterecords/search"
	timeLayout  = "2006-01-02T15:04:05-07:00"
)

var ErrAPI = errors.New("hik cloud api error")

type Config struct {
	BaseURL        string
	AppKey         string
	SecretKey      string
	PageSize       int
	RequestsPerSec float64
	Timeout        time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker[[]byte]
}

func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 || cfg.PageSize > 200 {
		cfg.PageSize = 200
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		breaker: breaker.New[[]byte](breaker.Settings{Name: "hik-cloud", Timeout: 2 * time.Minute}),
	}
}

// Token is a short-lived API session bound to a regional domain.
type Token struct {
	AccessToken string
	AreaDomain  string
	ExpiresAt   time.Time
}

type envelope struct {
	ErrorCode string          `json:"errorCode"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) Token(ctx context.Context) (Token, error) {
	body, err := c.post(ctx, c.cfg.BaseURL+tokenPath, "", map[string]string{
		"appKey":    c.cfg.AppKey,
		"secretKey": c.cfg.SecretKey,
	})
	if err != nil {
		return Token{}, fmt.Errorf("failed to get token: %w", err)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
		AreaDomain  string `json:"areaDomain"`
		ExpireTime  int64  `json:"expireTime"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return Token{}, fmt.Errorf("failed to decode token: %w", err)
	}
	if data.AccessToken == "" || data.AreaDomain == "" {
		return Token{}, fmt.Errorf("%w: token response missing accessToken or areaDomain", ErrAPI)
	}

	domain, err := CleanAreaDomain(data.AreaDomain)
	if err != nil {
		return Token{}, err
	}

	tok := Token{AccessToken: data.AccessToken, AreaDomain: domain}
	if data.ExpireTime > 0 {
		tok.ExpiresAt = time.Unix(data.ExpireTime, 0)
	}
	return tok, nil
}

var hostPattern = regexp.MustCompile(`https?://[a-zA-Z0-9.\-]+(:[0-9]+)?`)

// CleanAreaDomain reduces the area domain the API returns to scheme and host.
func CleanAreaDomain(s string) (string, error) {
	s = strings.TrimSpace(s)
	if m := hostPattern.FindString(s); m != "" {
		return m, nil
	}
	if s != "" && strings.Contains(s, "hikcentralconnect.com") {
		return "https://" + strings.Trim(s, "/"), nil
	}
	return "", fmt.Errorf("%w: invalid area domain %q", ErrAPI, s)
}

// Record is one card, face or fingerprint verification event.
type Record struct {
	GUID       string
	DeviceName string
	PersonCode string
	FirstName  string
	LastName   string
	RecordTime time.Time
	Raw        json.RawMessage
}

type personInfo struct {
	PersonCode string `json:"personCode"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

type rawRecord struct {
	RecordGUID string `json:"recordGuid"`
	DeviceName string `json:"deviceName"`
	RecordTime string `json:"recordTime"`
	PersonInfo struct {
		PersonInfo *personInfo `json:"personInfo"`
		BaseInfo   *personInfo `json:"baseInfo"`
	} `json:"personInfo"`
}

func (r rawRecord) person() personInfo {
	if r.PersonInfo.PersonInfo != nil {
		return *r.PersonInfo.PersonInfo
	}
	if r.PersonInfo.BaseInfo != nil {
		return *r.PersonInfo.BaseInfo
	}
	return personInfo{}
}

type Page struct {
	Records  []Record
	TotalNum int
}

// SearchRecords fetches one page of records in [begin, end]. pageIndex starts at 1.
func (c *Client) SearchRecords(ctx context.Context, tok Token, begin, end time.Time, pageIndex int) (Page, error) {
	body, err := c.post(ctx, tok.AreaDomain+recordsPath, tok.AccessToken, map[string]interface{}{
		"pageIndex": pageIndex,
		"pageSize":  c.cfg.PageSize,
		"beginTime": begin.Format(timeLayout),
		"endTime":   end.Format(timeLayout),
	})
	if err != nil {
		return Page{}, fmt.Errorf("failed to search records: %w", err)
	}

	var data struct {
		RecordList []json.RawMessage `json:"recordList"`
		TotalNum   int               `json:"totalNum"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return Page{}, fmt.Errorf("failed to decode records: %w", err)
	}

	page := Page{TotalNum: data.TotalNum, Records: make([]Record, 0, len(data.RecordList))}
	for _, raw := range data.RecordList {
		var rr rawRecord
		if err := json.Unmarshal(raw, &rr); err != nil {
			continue
		}
		p := rr.person()
		rec := Record{
			GUID:       rr.RecordGUID,
			DeviceName: rr.DeviceName,
			PersonCode: strings.TrimSpace(p.PersonCode),
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Raw:        raw,
		}
		if t, err := time.Parse(time.RFC3339, rr.RecordTime); err == nil {
			rec.RecordTime = t
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// Records walks every page in [begin, end] and calls fn per record.
func (c *Client) Records(ctx context.Context, tok Token, begin, end time.Time, fn func(Record) error) error {
	for pageIndex := 1; ; pageIndex++ {
		page, err := c.SearchRecords(ctx, tok, begin, end, pageIndex)
		if err != nil {
			return err
		}
		if len(page.Records) == 0 {
			return nil
		}
		for _, rec := range page.Records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if pageIndex*c.cfg.PageSize >= page.TotalNum {
			return nil
		}
	}
}

// post sends a JSON request through the limiter and breaker and returns the
// envelope data of a successful call.
func (c *Client) post(ctx context.Context, url, token string, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Token", token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: http %d", ErrAPI, resp.StatusCode)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: invalid json response", ErrAPI)
		}
		if env.ErrorCode != "0" {
			return nil, fmt.Errorf("%w: errorCode %s %s", ErrAPI, env.ErrorCode, env.Message)
		}
		return env.Data, nil
	})
}
