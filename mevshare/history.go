package mevshare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flashbots/mev-share-client/jsonrpcclient"
)

// HistoryClient reads the relay's event history REST API. Requests are plain
// unauthenticated GETs; history is public data.
type HistoryClient struct {
	baseURL string
	http    *http.Client
}

func NewHistoryClient(baseURL string, httpClient *http.Client) *HistoryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HistoryClient{baseURL: baseURL, http: httpClient}
}

// Info fetches the bounds of the queryable history window.
func (c *HistoryClient) Info(ctx context.Context) (*EventHistoryInfo, error) {
	var info EventHistoryInfo
	if err := c.get(ctx, c.baseURL+"/history/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Events fetches one page of historical hint events. params may be nil for
// the relay's defaults; paging past MaxLimit is the caller's job, via Offset.
func (c *HistoryClient) Events(ctx context.Context, params *EventHistoryParams) ([]EventHistoryEntry, error) {
	endpoint := c.baseURL + "/history"
	if query := encodeHistoryParams(params); query != "" {
		endpoint += "?" + query
	}
	var entries []EventHistoryEntry
	if err := c.get(ctx, endpoint, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HistoryClient) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read history response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history request failed: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &jsonrpcclient.DecodeError{Body: body, Err: err}
	}
	return nil
}

func encodeHistoryParams(params *EventHistoryParams) string {
	if params == nil {
		return ""
	}
	values := url.Values{}
	set := func(key string, v *uint64) {
		if v != nil {
			values.Set(key, strconv.FormatUint(*v, 10))
		}
	}
	set("blockStart", params.BlockStart)
	set("blockEnd", params.BlockEnd)
	set("timestampStart", params.TimestampStart)
	set("timestampEnd", params.TimestampEnd)
	set("limit", params.Limit)
	set("offset", params.Offset)
	return values.Encode()
}
