package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Client talks to the orchestration service. Triggering is fire-and-forget:
// the call returns once the orchestrator accepts the run and never waits
// for the run itself.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     Logger
}

// ClientOption customizes the orchestrator client
type ClientOption func(*Client)

// WithToken sets the bearer token sent on orchestrator calls
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates an orchestrator client for the given base URL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type triggerRequest struct {
	URL     string `json:"url"`
	Payload any    `json:"payload"`
}

// Trigger enqueues a new run. endpoint is the URL the orchestrator will
// call back into to execute and resume the workflow.
func (c *Client) Trigger(ctx context.Context, endpoint string, payload any) (RunHandle, error) {
	var handle RunHandle

	body, err := json.Marshal(triggerRequest{URL: endpoint, Payload: payload})
	if err != nil {
		return handle, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode trigger payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return handle, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build trigger request")
	}
	c.decorate(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return handle, goerrors.Wrap(err, goerrors.CategoryOperation, "orchestrator trigger call failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return handle, orchestratorError("trigger", res)
	}

	if err := json.NewDecoder(res.Body).Decode(&handle); err != nil {
		return handle, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode trigger response")
	}

	c.logger.Debug("workflow run triggered run=%s endpoint=%s", handle.RunID, endpoint)

	return handle, nil
}

// Cancel terminates a run by id. Campaign runs loop forever on their own,
// so cancelling is the only way to stop re-engagement for a user.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return goerrors.New("run id is required", goerrors.CategoryBadInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/runs/"+runID, nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build cancel request")
	}
	c.decorate(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "orchestrator cancel call failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return orchestratorError("cancel", res)
	}

	return nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func orchestratorError(op string, res *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return goerrors.New(
		fmt.Sprintf("orchestrator %s returned %d", op, res.StatusCode),
		goerrors.CategoryOperation,
	).WithMetadata(map[string]any{
		"status": res.StatusCode,
		"body":   string(detail),
	})
}
