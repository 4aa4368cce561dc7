package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"overlay-sync/internal/models"
)

// wireRecord is the stored shape of one log entry. Field names match the
// records the overlay has always written.
type wireRecord struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Avatar    string `json:"avatar,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// LogClient reads and appends room logs over the store's REST API. The
// store keys each room's log by opaque push ids that sort in arrival
// order, which is what makes cursor-based incremental fetch possible.
type LogClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewLogClient builds a LogClient. authToken may be empty for stores
// with open read rules.
func NewLogClient(baseURL, authToken string, httpClient *http.Client) *LogClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &LogClient{
		baseURL:    baseURL,
		authToken:  strings.TrimSpace(authToken),
		httpClient: httpClient,
	}
}

// FetchRecent returns at most limit of the newest messages in the room,
// oldest first.
func (c *LogClient) FetchRecent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	q := url.Values{}
	q.Set("orderBy", `"$key"`)
	q.Set("limitToLast", fmt.Sprintf("%d", limit))
	msgs, err := c.fetch(ctx, room, q)
	if err != nil {
		return nil, &FetchError{Room: room, Err: err}
	}
	return msgs, nil
}

// FetchAfter returns messages with ids strictly greater than sinceID,
// oldest first. An empty result is a normal success.
func (c *LogClient) FetchAfter(ctx context.Context, room, sinceID string) ([]models.Message, error) {
	q := url.Values{}
	q.Set("orderBy", `"$key"`)
	q.Set("startAfter", `"`+sinceID+`"`)
	msgs, err := c.fetch(ctx, room, q)
	if err != nil {
		return nil, &FetchError{Room: room, Err: err}
	}
	return msgs, nil
}

// Append writes msg to the end of the room's log and returns the
// server-assigned id. Best effort: callers must treat errors as
// non-fatal.
func (c *LogClient) Append(ctx context.Context, room string, msg models.Message) (string, error) {
	record := wireRecord{
		Username:  msg.Author,
		Text:      msg.Body,
		Avatar:    msg.Avatar,
		Timestamp: msg.SentAt.UnixMilli(),
	}
	body, err := json.Marshal(record)
	if err != nil {
		return "", &AppendError{Room: room, Err: err}
	}

	payload, err := c.do(ctx, http.MethodPost, c.roomURL(room, nil), body)
	if err != nil {
		return "", &AppendError{Room: room, Err: err}
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload, &result); err != nil || result.Name == "" {
		return "", &AppendError{Room: room, Err: fmt.Errorf("%w: append result", ErrMalformed)}
	}
	return result.Name, nil
}

func (c *LogClient) fetch(ctx context.Context, room string, q url.Values) ([]models.Message, error) {
	payload, err := c.do(ctx, http.MethodGet, c.roomURL(room, q), nil)
	if err != nil {
		return nil, err
	}

	// An empty log reads back as JSON null.
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}

	var records map[string]wireRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	msgs := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		record := records[id]
		msg := models.Message{
			ID:     id,
			Author: record.Username,
			Body:   record.Text,
			Avatar: record.Avatar,
			SentAt: time.UnixMilli(record.Timestamp),
		}
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", ErrMalformed, id, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *LogClient) roomURL(room string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.authToken != "" {
		q.Set("auth", c.authToken)
	}
	u := fmt.Sprintf("%s/rooms/%s/messages.json", c.baseURL, url.PathEscape(room))
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func (c *LogClient) do(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(payload, &errBody)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	return payload, nil
}
