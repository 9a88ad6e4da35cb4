package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/mapping"
	"mcpdesk/internal/infra/telemetry"
)

const (
	defaultUserAgent = "mcpdesk"
	maxBodyBytes     = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the management service over HTTP/JSON.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	logger    *zap.Logger
	metrics   domain.Metrics
}

// NewClient validates the base URL and builds a client.
func NewClient(opts Options, logger *zap.Logger, metrics domain.Metrics) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = domain.DefaultAPIBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, domain.Validation("remote.new", fmt.Sprintf("invalid api base url %q", raw))
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = domain.DefaultAPITimeoutSeconds * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		base:      base,
		http:      httpClient,
		userAgent: userAgent,
		logger:    logger.Named("remote"),
		metrics:   metrics,
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) ListServers(ctx context.Context, req domain.ServerListRequest) (domain.ServerListResult, error) {
	const op = "server.list"
	query := url.Values{}
	setInt(query, "page", req.Page)
	setInt(query, "size", req.Size)
	setString(query, "search", req.Search)
	setString(query, "status", string(req.Status))
	setBool(query, "enabled", req.Enabled)
	setString(query, "order_by", string(req.OrderBy))
	setString(query, "order_dir", string(req.OrderDir))

	var list serverList
	if err := c.call(ctx, op, http.MethodGet, "/mcp-servers", query, nil, &list); err != nil {
		return domain.ServerListResult{}, err
	}
	return domain.ServerListResult{
		Servers: mapping.MapSlice(list.Servers, serverRecord.toDomain),
		Total:   list.Total,
	}, nil
}

func (c *Client) GetServer(ctx context.Context, id domain.ServerID) (domain.Server, error) {
	var record serverRecord
	if err := c.call(ctx, "server.get", http.MethodGet, serverPath(id), nil, nil, &record); err != nil {
		return domain.Server{}, err
	}
	return record.toDomain(), nil
}

func (c *Client) CreateServer(ctx context.Context, req domain.ServerCreateRequest) (domain.Server, error) {
	const op = "server.create"
	if err := req.Validate(); err != nil {
		return domain.Server{}, err
	}
	payload := serverPayload{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		AuthType:    string(authOrNone(req.AuthType)),
		AuthConfig:  req.AuthConfig,
		Tags:        domain.JoinTags(req.Tags),
	}
	var record serverRecord
	if err := c.call(ctx, op, http.MethodPost, "/mcp-servers", nil, payload, &record); err != nil {
		return domain.Server{}, err
	}
	return record.toDomain(), nil
}

func (c *Client) UpdateServer(ctx context.Context, id domain.ServerID, req domain.ServerUpdateRequest) (domain.Server, error) {
	const op = "server.update"
	if err := req.Validate(); err != nil {
		return domain.Server{}, err
	}
	payload := serverPayload{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		AuthType:    string(authOrNone(req.AuthType)),
		AuthConfig:  req.AuthConfig,
		IsEnabled:   req.Enabled,
		Tags:        domain.JoinTags(req.Tags),
	}
	var record serverRecord
	if err := c.call(ctx, op, http.MethodPut, serverPath(id), nil, payload, &record); err != nil {
		return domain.Server{}, err
	}
	return record.toDomain(), nil
}

func (c *Client) DeleteServer(ctx context.Context, id domain.ServerID) error {
	return c.call(ctx, "server.delete", http.MethodDelete, serverPath(id), nil, nil, nil)
}

func (c *Client) ToggleServer(ctx context.Context, id domain.ServerID) (domain.Server, error) {
	var record serverRecord
	if err := c.call(ctx, "server.toggle", http.MethodPut, serverPath(id)+"/toggle", nil, nil, &record); err != nil {
		return domain.Server{}, err
	}
	return record.toDomain(), nil
}

func (c *Client) ListServerTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.call(ctx, "server.tags", http.MethodGet, "/mcp-servers/tags", nil, nil, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (c *Client) DiscoverTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	return c.discover(ctx, "server.discover", serverPath(id)+"/discover-tools")
}

func (c *Client) RefreshTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	return c.discover(ctx, "tool.refresh", fmt.Sprintf("/mcp-tools/refresh/%d", id))
}

func (c *Client) TestConnection(ctx context.Context, req domain.ConnectionTestRequest) (bool, error) {
	const op = "server.test_connection"
	payload := connectionPayload{
		URL:        req.URL,
		AuthType:   string(authOrNone(req.AuthType)),
		AuthConfig: req.AuthConfig,
	}
	var data json.RawMessage
	if err := c.call(ctx, op, http.MethodPost, "/mcp-servers/test-connection", nil, payload, &data); err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return true, nil
	}
	var connected bool
	if err := json.Unmarshal(data, &connected); err == nil {
		return connected, nil
	}
	var result connectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return false, domain.Transport(op, fmt.Errorf("decode connection result: %w", err))
	}
	return result.Connected, nil
}

func (c *Client) ListTools(ctx context.Context, req domain.ToolListRequest) (domain.ToolListResult, error) {
	query := url.Values{}
	if req.ServerID != 0 {
		query.Set("server_id", strconv.FormatUint(uint64(req.ServerID), 10))
	}
	setString(query, "category", req.Category)
	setString(query, "search", req.Search)
	setBool(query, "enabled", req.Enabled.Bool())
	setInt(query, "page", req.Page)
	setInt(query, "size", req.Size)

	var list toolList
	if err := c.call(ctx, "tool.list", http.MethodGet, "/mcp-tools", query, nil, &list); err != nil {
		return domain.ToolListResult{}, err
	}
	return domain.ToolListResult{
		Tools: mapping.MapSlice(list.Tools, toolRecord.toDomain),
		Total: list.Total,
	}, nil
}

// UpdateTool patches one tool. The service may answer without a record, in which case the
// returned tool is zero.
func (c *Client) UpdateTool(ctx context.Context, id domain.ToolID, req domain.ToolUpdateRequest) (domain.Tool, error) {
	payload := toolUpdatePayload{IsEnabled: req.Enabled, Category: req.Category}
	var record *toolRecord
	if err := c.call(ctx, "tool.update", http.MethodPut, fmt.Sprintf("/mcp-tools/%d", id), nil, payload, &record); err != nil {
		return domain.Tool{}, err
	}
	if record == nil {
		return domain.Tool{}, nil
	}
	return record.toDomain(), nil
}

func (c *Client) BatchUpdateTools(ctx context.Context, req domain.ToolBatchUpdateRequest) error {
	const op = "tool.batch_update"
	if len(req.ToolIDs) == 0 {
		return domain.Validation(op, "tool ids are required")
	}
	payload := toolBatchPayload{ToolIDs: toolIDs(req.ToolIDs), IsEnabled: req.Enabled, Category: req.Category}
	return c.call(ctx, op, http.MethodPut, "/mcp-tools/batch", nil, payload, nil)
}

func (c *Client) ListToolCategories(ctx context.Context, serverID domain.ServerID) ([]string, error) {
	query := url.Values{}
	if serverID != 0 {
		query.Set("server_id", strconv.FormatUint(uint64(serverID), 10))
	}
	var categories []string
	if err := c.call(ctx, "tool.categories", http.MethodGet, "/mcp-tools/categories", query, nil, &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// call issues one enveloped request and decodes data into out when out is non-nil.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	raw, status, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if status >= http.StatusMultipleChoices {
				return domain.RemoteFailure(op, http.StatusText(status), status)
			}
			return domain.Transport(op, fmt.Errorf("decode response: %w", err))
		}
	}
	if !env.Success || status >= http.StatusMultipleChoices {
		return remoteFailure(op, env.failure(), status)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.Transport(op, fmt.Errorf("decode %s data: %w", op, err))
	}
	return nil
}

// discover handles the discovery endpoints, which answer outside the data envelope.
func (c *Client) discover(ctx context.Context, op, path string) (domain.DiscoveryResult, error) {
	raw, status, err := c.do(ctx, op, http.MethodPost, path, nil, nil)
	if err != nil {
		return domain.DiscoveryResult{}, err
	}
	var res discovery
	if err := json.Unmarshal(raw, &res); err != nil {
		if status >= http.StatusMultipleChoices {
			return domain.DiscoveryResult{}, domain.RemoteFailure(op, http.StatusText(status), status)
		}
		return domain.DiscoveryResult{}, domain.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	if status >= http.StatusMultipleChoices || !res.Success {
		msg := envelope{Message: res.Message, Error: res.Error, Details: res.Details}.failure()
		return domain.DiscoveryResult{}, remoteFailure(op, msg, status)
	}
	return res.toDomain(), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, meta := telemetry.EnsureRequestMeta(ctx)
	logger := telemetry.LoggerWithRequest(ctx, c.logger).With(telemetry.OpField(op))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, domain.E(domain.CodeInternal, op, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, domain.E(domain.CodeInternal, op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	telemetry.InjectHeaders(req.Header, meta)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		callErr := transportFailure(ctx, op, err)
		c.observe(logger, op, method, path, 0, start, callErr)
		return nil, 0, callErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		callErr := transportFailure(ctx, op, fmt.Errorf("read response: %w", err))
		c.observe(logger, op, method, path, resp.StatusCode, start, callErr)
		return nil, resp.StatusCode, callErr
	}

	var statusErr error
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr = domain.RemoteFailure(op, resp.Status, resp.StatusCode)
	}
	c.observe(logger, op, method, path, resp.StatusCode, start, statusErr)
	return raw, resp.StatusCode, nil
}

func (c *Client) observe(logger *zap.Logger, op, method, path string, status int, start time.Time, err error) {
	duration := time.Since(start)
	c.metrics.ObserveRemoteCall(op, duration, err)

	fields := []zap.Field{
		zap.String(telemetry.FieldMethod, method),
		zap.String(telemetry.FieldPath, path),
		zap.Int(telemetry.FieldStatus, status),
		telemetry.DurationField(duration),
	}
	if err != nil {
		logger.Debug("remote call failed", append(fields, telemetry.EventField(telemetry.EventRemoteFailure), zap.Error(err))...)
		return
	}
	logger.Debug("remote call", append(fields, telemetry.EventField(telemetry.EventRemoteCall))...)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func remoteFailure(op, msg string, status int) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "request rejected"
	}
	return domain.RemoteFailure(op, msg, status)
}

func transportFailure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return domain.E(domain.CodeCanceled, op, "", ctxErr)
	}
	return domain.Transport(op, err)
}

func serverPath(id domain.ServerID) string {
	return fmt.Sprintf("/mcp-servers/%d", id)
}

func authOrNone(auth domain.AuthType) domain.AuthType {
	if auth == "" {
		return domain.AuthNone
	}
	return auth
}

func setString(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func setInt(values url.Values, key string, value int) {
	if value > 0 {
		values.Set(key, strconv.Itoa(value))
	}
}

func setBool(values url.Values, key string, value *bool) {
	if value != nil {
		values.Set(key, strconv.FormatBool(*value))
	}
}

var _ domain.Remote = (*Client)(nil)
