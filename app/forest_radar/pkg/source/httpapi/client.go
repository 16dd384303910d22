// Package httpapi 通过 HTTP 采集代理查询目录之外的数据
// （复制元数据、服务状态、DHCP 作用域等需要在服务器本地执行的查询）。
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// Client 采集代理 API 客户端
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient 创建一个新的采集代理客户端，timeout 单位为秒
func NewClient(baseURL, token string, timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: t,
		},
	}
}

// Ensure Client implements source.Source
var _ source.Source = (*Client)(nil)

// QueryResponse 代理响应结构
type QueryResponse struct {
	Records []map[string]any `json:"records"`
	Error   string           `json:"error,omitempty"`
}

// Query implements source.Source
func (c *Client) Query(ctx context.Context, req *source.Request) (*source.Response, error) {
	u, err := url.Parse(c.baseURL + "/v1/query")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("kind", string(req.Kind))
	if req.Target != "" {
		q.Set("target", req.Target)
	}
	if req.Name != "" {
		q.Set("name", req.Name)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var qr QueryResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	// FILETIME 超过 float64 精度，保留为 json.Number
	dec.UseNumber()
	if err := dec.Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if qr.Error != "" {
		return nil, fmt.Errorf("agent error for %s: %s", req.String(), qr.Error)
	}

	records := make([]source.Attributes, 0, len(qr.Records))
	for _, r := range qr.Records {
		records = append(records, source.Attributes(r))
	}
	return &source.Response{Records: records}, nil
}

// Ping implements source.Pinger
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.get(ctx, c.baseURL+"/healthz"); err != nil {
		return fmt.Errorf("%w: %v", source.ErrUnreachable, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusNotImplemented:
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupported, strings.TrimSpace(string(body)))
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("agent api error (status %d): %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
