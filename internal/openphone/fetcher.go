package openphone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// fetchAllPages walks a cursor-paginated list endpoint, accumulating every
// page into one slice in provider order. Pagination stops when a response
// carries no items or no next-cursor; a short page alone does not end the
// stream. resultCap > 0 bounds the accumulated count (the provider returns
// newest first, so a cap of N yields the N most recent items).
func fetchAllPages[T any](ctx context.Context, c *Client, path string, params url.Values, pageSize, resultCap int) ([]T, error) {
	var items []T
	pageToken := ""

	for {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("maxResults", strconv.Itoa(pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		body, err := c.doRequest(ctx, path, q)
		if err != nil {
			return items, fmt.Errorf("fetching %s: %w", path, err)
		}

		var resp page[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return items, fmt.Errorf("parsing %s: %w", path, err)
		}

		items = append(items, resp.Data...)

		if resultCap > 0 && len(items) >= resultCap {
			return items[:resultCap], nil
		}
		if len(resp.Data) == 0 || resp.NextPageToken == "" {
			return items, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListCalls fetches call history between a channel and a participant,
// newest first, across all pages up to resultCap.
func (c *Client) ListCalls(ctx context.Context, phoneNumberID, participant string, pageSize, resultCap int) ([]Call, error) {
	params := url.Values{}
	params.Set("phoneNumberId", phoneNumberID)
	params.Set("participants", participant)
	return fetchAllPages[Call](ctx, c, "/calls", params, pageSize, resultCap)
}

// ListMessages fetches message history between a channel and a participant,
// newest first, across all pages up to resultCap.
func (c *Client) ListMessages(ctx context.Context, phoneNumberID, participant string, pageSize, resultCap int) ([]Message, error) {
	params := url.Values{}
	params.Set("phoneNumberId", phoneNumberID)
	params.Set("participants", participant)
	return fetchAllPages[Message](ctx, c, "/messages", params, pageSize, resultCap)
}
