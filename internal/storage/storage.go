package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BaseURL    string
	SigningKey string
	URLTTL     time.Duration
	Timeout    time.Duration
}

// Client resolves opaque image ids to signed display URLs and releases them
// from the object store when their owner is deleted.
type Client struct {
	baseURL    string
	key        []byte
	urlTTL     time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.URLTTL == 0 {
		cfg.URLTTL = time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        []byte(cfg.SigningKey),
		urlTTL:     cfg.URLTTL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// DisplayURL returns a time-limited URL for the image, or "" for an empty id
func (c *Client) DisplayURL(imageID string) string {
	if imageID == "" {
		return ""
	}

	expires := strconv.FormatInt(c.now().Add(c.urlTTL).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", c.sign("GET", imageID, expires))

	return c.baseURL + "/images/" + url.PathEscape(imageID) + "?" + q.Encode()
}

// Verify checks a display URL signature produced by DisplayURL
func (c *Client) Verify(imageID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || c.now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(c.sign("GET", imageID, expires)))
}

// Release deletes every image, attempting all of them and joining the failures
func (c *Client) Release(ctx context.Context, imageIDs []string) error {
	var errs []error
	for _, id := range imageIDs {
		if id == "" {
			continue
		}
		if err := c.destroy(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to release image %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) destroy(ctx context.Context, imageID string) error {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	form := url.Values{}
	form.Set("public_id", imageID)
	form.Set("timestamp", timestamp)
	form.Set("signature", c.sign("DELETE", imageID, timestamp))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/destroy",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// already gone counts as released
	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("Image already released", "image_id", imageID)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) sign(method, imageID, stamp string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(method + "\n" + imageID + "\n" + stamp))
	return hex.EncodeToString(mac.Sum(nil))
}
