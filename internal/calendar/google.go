package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aidab12/LinguaTime/internal/app"
	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

const defaultAPIBase = "https://www.googleapis.com/calendar/v3"

// TokenSource yields an OAuth access token for one interpreter's
// connected Google account. Token storage and refresh live behind it.
type TokenSource interface {
	AccessToken(ctx context.Context, interpreterID string) (string, error)
}

// StaticTokenSource serves the same bearer token for every interpreter.
// Fits a service-account setup with domain-wide delegation; per-user
// OAuth flows plug in their own TokenSource.
type StaticTokenSource struct {
	Token string
}

func (s StaticTokenSource) AccessToken(ctx context.Context, interpreterID string) (string, error) {
	if s.Token == "" {
		return "", fmt.Errorf("no calendar API token configured")
	}
	return s.Token, nil
}

// GoogleClient fetches busy slots from the Google Calendar events API.
// It implements app.BusyFetcher.
type GoogleClient struct {
	tokens  TokenSource
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

type Option func(*GoogleClient)

// WithBaseURL points the client at a different API host. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *GoogleClient) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *GoogleClient) { c.client = hc }
}

func NewGoogleClient(tokens TokenSource, log *zap.Logger, opts ...Option) *GoogleClient {
	c := &GoogleClient{
		tokens:  tokens,
		baseURL: defaultAPIBase,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type event struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Start  eventTime `json:"start"`
	End    eventTime `json:"end"`
}

type eventsPage struct {
	Items         []event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
	NextSyncToken string  `json:"nextSyncToken"`
}

// FetchBusySlots lists primary-calendar events, following pagination
// until the provider hands back a sync token. A 410 from the API means
// the sync token is too old and the caller must resync from scratch.
func (c *GoogleClient) FetchBusySlots(ctx context.Context, interpreter domain.Interpreter, syncToken string, timeMin, timeMax time.Time) (app.CalendarFetchResult, error) {
	token, err := c.tokens.AccessToken(ctx, interpreter.ID)
	if err != nil {
		return app.CalendarFetchResult{}, fmt.Errorf("access token: %w", err)
	}

	result := app.CalendarFetchResult{}
	pageToken := ""
	for {
		page, err := c.listPage(ctx, token, syncToken, pageToken, timeMin, timeMax)
		if err != nil {
			return app.CalendarFetchResult{}, err
		}

		for _, ev := range page.Items {
			slot, ok := c.toBusySlot(ev)
			if !ok {
				continue
			}
			result.Slots = append(result.Slots, slot)
		}

		if page.NextPageToken == "" {
			result.NextSyncToken = page.NextSyncToken
			return result, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *GoogleClient) listPage(ctx context.Context, accessToken, syncToken, pageToken string, timeMin, timeMax time.Time) (eventsPage, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	if syncToken != "" {
		params.Set("syncToken", syncToken)
	} else {
		params.Set("timeMin", timeMin.Format(time.RFC3339))
		params.Set("timeMax", timeMax.Format(time.RFC3339))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	endpoint := c.baseURL + "/calendars/primary/events?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return eventsPage{}, fmt.Errorf("build events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return eventsPage{}, fmt.Errorf("list events: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return eventsPage{}, fmt.Errorf("read events response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusGone:
		return eventsPage{}, domain.ErrCalendarTokenInvalid
	case resp.StatusCode != http.StatusOK:
		return eventsPage{}, fmt.Errorf("list events: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page eventsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return eventsPage{}, fmt.Errorf("decode events response: %w", err)
	}
	return page, nil
}

func (c *GoogleClient) toBusySlot(ev event) (app.BusySlot, bool) {
	if ev.Status == "cancelled" {
		return app.BusySlot{EventID: ev.ID, Cancelled: true}, true
	}

	start, okStart := parseEventTime(ev.Start)
	end, okEnd := parseEventTime(ev.End)
	if !okStart || !okEnd {
		c.log.Warn("skipping event with unparseable time", zap.String("event_id", ev.ID))
		return app.BusySlot{}, false
	}
	return app.BusySlot{EventID: ev.ID, Start: start, End: end}, true
}

// parseEventTime handles both timed events (dateTime) and all-day
// events (date, midnight UTC).
func parseEventTime(et eventTime) (time.Time, bool) {
	if et.DateTime != "" {
		ts, err := time.Parse(time.RFC3339, et.DateTime)
		return ts, err == nil
	}
	if et.Date != "" {
		ts, err := time.Parse("2006-01-02", et.Date)
		return ts, err == nil
	}
	return time.Time{}, false
}
