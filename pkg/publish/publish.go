// Package publish posts images with captions to an Instagram business
// account through the Graph API content publishing flow.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCaption is the longest caption Instagram accepts, in characters.
const MaxCaption = 2200

const maxResponse = 1 << 20

// Post is one image to publish.
type Post struct {
	// ImageURL must be publicly fetchable by Instagram.
	ImageURL string
	Caption  string
}

// Published identifies a post on the account.
type Published struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// System publishes posts.
type System interface {
	Publish(ctx context.Context, post Post) (*Published, error)
}

type instagram struct {
	client   *http.Client
	base     string
	account  string
	token    string
	poll     time.Duration
	maxPolls int
	logger   *slog.Logger
}

// New creates a publisher for cfg using an HTTP client bounded by cfg.Timeout.
func New(cfg *Config, logger *slog.Logger) System {
	return NewWithClient(&http.Client{Timeout: cfg.TimeoutDuration()}, cfg, logger)
}

// NewWithClient creates a publisher that sends requests through client.
func NewWithClient(client *http.Client, cfg *Config, logger *slog.Logger) System {
	return &instagram{
		client:   client,
		base:     strings.TrimRight(cfg.GraphURL, "/"),
		account:  cfg.AccountID,
		token:    cfg.AccessToken,
		poll:     cfg.PollIntervalDuration(),
		maxPolls: cfg.MaxPolls,
		logger:   logger.With("system", "publish"),
	}
}

// Publish creates a media container for the image, waits for Instagram to
// ingest it, then publishes it. A missing permalink is logged, not failed,
// since the post already exists.
func (p *instagram) Publish(ctx context.Context, post Post) (*Published, error) {
	if post.ImageURL == "" {
		return nil, fmt.Errorf("%w: %w: image url is empty", ErrPublish, ErrInvalidPost)
	}
	if n := utf8.RuneCountInString(post.Caption); n > MaxCaption {
		return nil, fmt.Errorf("%w: %w: caption is %d characters, limit %d", ErrPublish, ErrInvalidPost, n, MaxCaption)
	}

	var container struct {
		ID string `json:"id"`
	}
	err := p.call(ctx, http.MethodPost, p.account+"/media", url.Values{
		"image_url": {post.ImageURL},
		"caption":   {post.Caption},
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %w", ErrPublish, err)
	}
	if container.ID == "" {
		return nil, fmt.Errorf("%w: %w: no container id returned", ErrPublish, ErrContainer)
	}

	if err := p.await(ctx, container.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	var media struct {
		ID string `json:"id"`
	}
	err = p.call(ctx, http.MethodPost, p.account+"/media_publish", url.Values{
		"creation_id": {container.ID},
	}, &media)
	if err != nil {
		return nil, fmt.Errorf("%w: publish container %s: %w", ErrPublish, container.ID, err)
	}

	result := &Published{ID: media.ID}

	var link struct {
		Permalink string `json:"permalink"`
	}
	if err := p.call(ctx, http.MethodGet, media.ID, url.Values{"fields": {"permalink"}}, &link); err != nil {
		p.logger.WarnContext(ctx, "permalink lookup failed", "media_id", media.ID, "error", err)
	}
	result.URL = link.Permalink

	p.logger.InfoContext(ctx, "post published", "media_id", result.ID)
	return result, nil
}

// await polls the container status until it is FINISHED.
func (p *instagram) await(ctx context.Context, container string) error {
	for attempt := range p.maxPolls {
		var status struct {
			StatusCode string `json:"status_code"`
		}
		err := p.call(ctx, http.MethodGet, container, url.Values{"fields": {"status_code"}}, &status)
		if err != nil {
			return fmt.Errorf("container %s status: %w", container, err)
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("%w: container %s is %s", ErrContainer, container, status.StatusCode)
		}

		if attempt == p.maxPolls-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.poll):
		}
	}
	return fmt.Errorf("%w: container %s after %d polls", ErrNotReady, container, p.maxPolls)
}

// call sends one Graph API request. GET parameters go in the query string and
// POST parameters in a form body. The token travels in the Authorization header.
func (p *instagram) call(ctx context.Context, method, path string, params url.Values, out any) error {
	endpoint := p.base + "/" + path

	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			apiErr.Status = resp.StatusCode
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
