package client

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

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is a non-2xx response carrying the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to the monitor REST API rooted at baseURL (for example
// http://localhost:3000/api).
type Client struct {
	baseURL string
	client  HTTPDoer
	token   string
}

// New builds client with base URL. The doer must not impose a total request
// timeout if it is also used for Events.
func New(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  doer,
	}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Do executes HTTP request and returns status/body.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// getData GETs path and decodes the {"data": ...} envelope into dst.
func (c *Client) getData(ctx context.Context, path string, dst interface{}) error {
	status, body, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		var env struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &env)
		if env.Error == "" {
			env.Error = http.StatusText(status)
		}
		return &APIError{Status: status, Message: env.Error}
	}

	envelope := struct {
		Data interface{} `json:"data"`
	}{Data: dst}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ListSensors fetches every sensor.
func (c *Client) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	var data struct {
		Sensors []models.Sensor `json:"sensors"`
	}
	if err := c.getData(ctx, "/sensors", &data); err != nil {
		return nil, err
	}
	return data.Sensors, nil
}

// Datapoints fetches the annotated readings of a sensor, newest first. Zero
// from/to leave that end of the range open.
func (c *Client) Datapoints(ctx context.Context, sensorID int64, from, to time.Time) (*models.Sensor, []models.DatapointView, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		q.Set("to", to.UTC().Format(time.RFC3339Nano))
	}
	path := fmt.Sprintf("/sensors/%d/datapoints", sensorID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var data struct {
		Sensor     models.Sensor          `json:"sensor"`
		Datapoints []models.DatapointView `json:"datapoints"`
	}
	if err := c.getData(ctx, path, &data); err != nil {
		return nil, nil, err
	}
	return &data.Sensor, data.Datapoints, nil
}

// Events opens the live channel. The stream stays open until ctx is
// cancelled or Close is called.
func (c *Client) Events(ctx context.Context) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/sensors/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return NewStream(resp.Body), nil
}
