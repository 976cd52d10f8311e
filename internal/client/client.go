// Package client talks to the card server over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/verte-zerg/cardbox/internal/model"
)

const (
	defaultTimeout     = 10 * time.Second
	sessionHeader      = "X-Study-Session"
	breakerTrips       = 5
	breakerOpenTimeout = 5 * time.Second
	gradeRetryBase     = 200 * time.Millisecond
)

var (
	// ErrNoCard is returned when the box has no card to study.
	ErrNoCard = errors.New("no card available")
	// ErrNotFound is returned for unknown boxes.
	ErrNotFound = errors.New("box not found")
)

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	Session      string
	GradeRetries int
	HTTPClient   *http.Client
}

// Client fetches cards and submits grades for one study session.
type Client struct {
	base         *url.URL
	http         *http.Client
	session      string
	gradeRetries int
	breaker      *gobreaker.CircuitBreaker
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	session := opts.Session
	if session == "" {
		session = uuid.NewString()
	}
	retries := opts.GradeRetries
	if retries < 0 {
		retries = 0
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cardbox-" + base.Host,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[client] breaker %s: %s -> %s", name, from, to)
		},
	})
	return &Client{
		base:         base,
		http:         httpClient,
		session:      session,
		gradeRetries: retries,
		breaker:      breaker,
	}, nil
}

// Session returns the session identifier sent with every request.
func (c *Client) Session() string {
	return c.session
}

// NextCard fetches a fresh card for the box, bypassing any cache.
func (c *Client) NextCard(ctx context.Context, boxID int64) (model.CardPayload, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchCard(ctx, boxID)
	})
	if err != nil {
		return model.CardPayload{}, err
	}
	card, _ := res.(*model.CardPayload)
	if card == nil {
		return model.CardPayload{}, ErrNoCard
	}
	return *card, nil
}

func (c *Client) fetchCard(ctx context.Context, boxID int64) (*model.CardPayload, error) {
	u := c.resolve(fmt.Sprintf("/box/%d/next_card", boxID))
	q := u.Query()
	q.Set("_", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set(sessionHeader, c.session)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, statusError(resp)
	}
	var card model.CardPayload
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode card: %w", err)
	}
	if card.ID == "" || card.GradeURL == "" {
		return nil, fmt.Errorf("card payload is missing card_id or grade_url")
	}
	return &card, nil
}

// SubmitGrade posts the answer to the grading URL carried by the card.
// Transient failures are retried; client errors are not.
func (c *Client) SubmitGrade(ctx context.Context, gradeURL, cardID string, correct bool) error {
	var lastErr error
	for attempt := 0; attempt <= c.gradeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * gradeRetryBase):
			}
		}
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.postGrade(ctx, gradeURL, cardID, correct)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			break
		}
		if errors.Is(err, ErrNotFound) {
			break
		}
	}
	return fmt.Errorf("failed to submit grade for %s: %w", cardID, lastErr)
}

func (c *Client) postGrade(ctx context.Context, gradeURL, cardID string, correct bool) error {
	if gradeURL == "" {
		return fmt.Errorf("card %s has no grade url", cardID)
	}
	target, err := url.Parse(gradeURL)
	if err != nil {
		return fmt.Errorf("invalid grade url: %w", err)
	}
	form := url.Values{}
	form.Set("card_id", cardID)
	form.Set("correct", strconv.FormatBool(correct))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.ResolveReference(target).String(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(sessionHeader, c.session)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Boxes lists the boxes known to the server.
func (c *Client) Boxes(ctx context.Context) ([]model.BoxStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/boxes").String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var boxes []model.BoxStats
	if err := json.NewDecoder(resp.Body).Decode(&boxes); err != nil {
		return nil, fmt.Errorf("failed to decode boxes: %w", err)
	}
	return boxes, nil
}

func (c *Client) resolve(path string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimRight(c.base.Path, "/") + path})
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
