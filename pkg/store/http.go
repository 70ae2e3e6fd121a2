package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAPIURL is the IPFS daemon API address used when no configuration
// overrides it.
const DefaultAPIURL = "http://127.0.0.1:5001"

const defaultTimeout = 60 * time.Second

// Client talks to an IPFS daemon over its /api/v0 HTTP interface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the daemon at apiURL. A zero timeout
// selects the default.
func NewClient(apiURL string, timeout time.Duration) (*Client, error) {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API URL %q must include scheme and host", apiURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: apiURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type addResponse struct {
	Hash string `json:"Hash"`
}

type resolveResponse struct {
	Path string `json:"Path"`
}

type publishResponse struct {
	Name string `json:"Name"`
}

// Put uploads data via /api/v0/add and returns its "/ipfs/<hash>" link.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/add?pin=true", &body)
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp addResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	logrus.WithField("hash", resp.Hash).Trace("uploaded block")
	return "/ipfs/" + resp.Hash, nil
}

// Get downloads the bytes behind link via /api/v0/cat.
func (c *Client) Get(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/cat?arg="+url.QueryEscape(link), nil)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat %s: %w", link, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs cat %s: %s", link, readAPIError(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat %s: %w", link, err)
	}
	return data, nil
}

// ResolveName dereferences an IPNS name via /api/v0/name/resolve and
// returns the underlying "/ipfs/<hash>" link.
func (c *Client) ResolveName(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/name/resolve?recursive=true&arg="+url.QueryEscape(name), nil)
	if err != nil {
		return "", fmt.Errorf("ipns resolve %s: %w", name, err)
	}
	var resp resolveResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("ipns resolve %s: %w", name, err)
	}
	return resp.Path, nil
}

// PublishName points this daemon's IPNS name at link via
// /api/v0/name/publish and returns the published name.
func (c *Client) PublishName(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/name/publish?resolve=true&arg="+url.QueryEscape(link), nil)
	if err != nil {
		return "", fmt.Errorf("ipns publish %s: %w", link, err)
	}
	var resp publishResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("ipns publish %s: %w", link, err)
	}
	logrus.WithFields(logrus.Fields{"name": resp.Name, "link": link}).Debug("republished name")
	return resp.Name, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", readAPIError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readAPIError extracts the daemon's error message, falling back to the
// HTTP status line.
func readAPIError(resp *http.Response) string {
	var apiErr struct {
		Message string `json:"Message"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Sprintf("API error: %s", apiErr.Message)
	}
	return fmt.Sprintf("unexpected status %s", resp.Status)
}
