package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MessageStream follows the session's server-sent event stream. Each event's
// data is delivered verbatim, in order; the channel closes when the stream
// ends or the returned cancel func is called. Validation of the payload is
// left to the caller.
func (c *Client) MessageStream(ctx context.Context, sessionID string) (<-chan json.RawMessage, func(), error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil, errors.New("session id is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	streamURL := fmt.Sprintf("%s/api/sessions/%s/stream", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	httpClient := &http.Client{}
	if c.http != nil {
		httpClient.Transport = c.http.Transport
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		cancel()
		return nil, nil, decodeAPIError(resp)
	}

	ch := make(chan json.RawMessage, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var dataLines []string

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if len(dataLines) == 0 {
					continue
				}
				payload := json.RawMessage(strings.Join(dataLines, "\n"))
				dataLines = dataLines[:0]
				select {
				case ch <- payload:
				case <-ctx.Done():
					return
				}
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			}
		}
	}()

	return ch, cancel, nil
}
