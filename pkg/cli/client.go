package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a gateway rejection decoded from the response envelope.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
	Status int `json:"status"`
}

// Client is a minimal HTTP client for the gateway API.
type Client struct {
	host  string
	token string
	http  *http.Client
}

// NewClient creates a Client for the given host and bearer token.
func NewClient(host, token string) *Client {
	return &Client{
		host:  host,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do performs one request and decodes the envelope into out.
func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
			Retryable:  env.Error.Retryable,
		}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// AdhocResult mirrors the gateway's ad-hoc response.
type AdhocResult struct {
	Columns    []string        `json:"columns"`
	Rows       [][]interface{} `json:"rows"`
	Plan       []string        `json:"plan,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

// Adhoc submits an ad-hoc SQL statement.
func (c *Client) Adhoc(sql string, explain bool) (*AdhocResult, error) {
	var result AdhocResult
	err := c.do(http.MethodPost, "/v1/adhoc", map[string]interface{}{
		"sql":     sql,
		"explain": explain,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTables fetches the caller's table names.
func (c *Client) ListTables() ([]string, error) {
	var data struct {
		Tables []string `json:"tables"`
	}
	if err := c.do(http.MethodGet, "/v1/tables", nil, &data); err != nil {
		return nil, err
	}
	return data.Tables, nil
}

// TableInfo mirrors the gateway's describe response.
type TableInfo struct {
	Name    string `json:"name"`
	Columns []struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Writable bool   `json:"writable"`
	} `json:"columns"`
}

// DescribeTable fetches one table's visible columns.
func (c *Client) DescribeTable(table string) (*TableInfo, error) {
	var info TableInfo
	if err := c.do(http.MethodGet, "/v1/tables/"+table, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
