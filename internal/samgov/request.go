package samgov

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const contentEncoding = "gzip"

type item = map[string]any

type pageResponse struct {
	TotalRecords int    `json:"totalRecords"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
	Items        []item `json:"opportunitiesData"`
}

// getItems pages through the search endpoint with offset and limit until every record,
// or maxRecords of them, has been read.
func (c *Client) getItems(ctx context.Context, q url.Values) ([]item, error) {
	var items []item

	offset := 0
	for {
		resp, err := c.getPage(ctx, q, offset)
		if err != nil {
			return nil, err
		}

		items = append(items, resp.Items...)

		c.logger.Debug("got page from SAM.gov",
			zap.Int("offset", offset),
			zap.Int("received", len(resp.Items)),
			zap.Int("total", resp.TotalRecords),
		)

		offset += len(resp.Items)
		if len(resp.Items) == 0 || offset >= resp.TotalRecords {
			break
		}
		if len(items) >= c.maxRecords {
			c.logger.Info("stopping pagination", zap.String("reason", fmt.Sprintf(
				"read %d records, limit is %d", len(items), c.maxRecords),
			))
			break
		}
	}

	if len(items) > c.maxRecords {
		items = items[:c.maxRecords]
	}

	return items, nil
}

func (c *Client) getPage(ctx context.Context, q url.Values, offset int) (*pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	params := url.Values{}
	for k, v := range q {
		params[k] = v
	}
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("offset", strconv.Itoa(offset))

	c.logger.Debug("make request", zap.String("url", c.APIURL), zap.String("query", params.Encode()))

	params.Set("api_key", c.apiKey)
	req.URL.RawQuery = params.Encode()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sam.gov request: %w", err)
	}
	defer resp.Body.Close()

	return parsePage(resp)
}

func parsePage(resp *http.Response) (*pageResponse, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == contentEncoding {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(reader, 512))
		return nil, fmt.Errorf("sam.gov bad status: %s: %s", resp.Status, body)
	}

	var page pageResponse
	if err := json.NewDecoder(reader).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode sam.gov response: %w", err)
	}

	return &page, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", contentEncoding)
}
