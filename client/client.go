// Package client is the typed Go client for the warden daemon. The CLI is
// its only consumer; every command builds one Client and calls the method
// matching its endpoint.
//
// Responses decode into the server package's types, so the wire format has
// a single definition. Error responses come back as sentinel-marked errors:
// a 404 satisfies errors.ErrJobNotFound, a refused connection satisfies
// errors.ErrAgentNotRunning, so callers branch with errors.Is instead of
// parsing messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/server"
)

// DefaultTimeout bounds one API round trip. Large enough for a tail read
// over a slow disk, small enough that a wedged daemon fails the CLI fast.
const DefaultTimeout = 10 * time.Second

// Options customizes a Client. Zero values take the defaults.
type Options struct {
	// Port is the daemon port; zero means config.DefaultServerPort.
	Port int

	// Timeout bounds each request.
	Timeout time.Duration
}

// Client talks to a warden daemon over its localhost API.
type Client struct {
	host string
	http *http.Client
}

// New builds a client for the daemon on the given options' port.
func New(opts Options) *Client {
	port := opts.Port
	if port <= 0 {
		port = config.DefaultServerPort
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		host: fmt.Sprintf("127.0.0.1:%d", port),
		http: &http.Client{Timeout: timeout},
	}
}

// Submit enqueues a command as a new job and returns its snapshot.
func (c *Client) Submit(ctx context.Context, req server.SubmitRequest) (job.Snapshot, error) {
	var snap job.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &snap)
	return snap, err
}

// Jobs lists the live registry in submission order.
func (c *Client) Jobs(ctx context.Context) (server.JobListResponse, error) {
	var resp server.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp)
	return resp, err
}

// AuditJobs lists the persisted audit trail, newest first. limit <= 0 takes
// the server default.
func (c *Client) AuditJobs(ctx context.Context, limit int) (server.AuditListResponse, error) {
	path := "/api/jobs?all=true"
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var resp server.AuditListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Job fetches one job with its live process sample, if any.
func (c *Client) Job(ctx context.Context, id string) (server.JobDetailResponse, error) {
	var resp server.JobDetailResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Cancel stops a job and returns its post-cancel snapshot.
func (c *Client) Cancel(ctx context.Context, id string) (job.Snapshot, error) {
	var snap job.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &snap)
	return snap, err
}

// Output reports where a job's captured output lives. tail > 0 additionally
// returns the last tail lines of each capture file.
func (c *Client) Output(ctx context.Context, id string, tail int) (server.OutputResponse, error) {
	path := "/api/jobs/" + url.PathEscape(id) + "/output"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var resp server.OutputResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Updates fetches a job's tracked scalar history. names narrows the query;
// recentOnly trims to entries since the last read; plot asks the daemon to
// render a chart and return its path.
func (c *Client) Updates(ctx context.Context, id string, names []string, recentOnly, plot bool) (server.UpdatesResponse, error) {
	q := url.Values{}
	if len(names) > 0 {
		q.Set("names", strings.Join(names, ","))
	}
	if recentOnly {
		q.Set("recent_only", "true")
	}
	if plot {
		q.Set("img", "true")
	}
	path := "/api/jobs/" + url.PathEscape(id) + "/updates"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp server.UpdatesResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Notifications fetches a job's notification history, in-memory by default
// or the persisted audit trail with all.
func (c *Client) Notifications(ctx context.Context, id string, all bool) (server.NotificationsResponse, error) {
	path := "/api/jobs/" + url.PathEscape(id) + "/notifications"
	if all {
		path += "?all=true"
	}
	var resp server.NotificationsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Find resolves a job query (id, number, or name pattern) to a job id.
func (c *Client) Find(ctx context.Context, query string) (string, error) {
	var resp server.FindResponse
	if err := c.do(ctx, http.MethodGet, "/api/find?q="+url.QueryEscape(query), nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Report sends one scalar value, routed to the owning job by pid.
func (c *Client) Report(ctx context.Context, pid int, name string, value float64) error {
	req := server.ReportRequest{Pid: pid, Name: name, Value: value}
	return c.do(ctx, http.MethodPost, "/api/report", req, nil)
}

// AddCondition registers a notification condition on a job.
func (c *Client) AddCondition(ctx context.Context, req server.ConditionRequest) error {
	return c.do(ctx, http.MethodPost, "/api/conditions", req, nil)
}

// RegisterExternal wraps an externally-owned pid in an observed job.
func (c *Client) RegisterExternal(ctx context.Context, req server.ExternalRequest) (job.Snapshot, error) {
	var snap job.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/external", req, &snap)
	return snap, err
}

// UnregisterExternal ends an external job's observed run.
func (c *Client) UnregisterExternal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/external/"+url.PathEscape(id), nil, nil)
}

// Status fetches the agent summary.
func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var resp server.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Stop asks the daemon to shut down gracefully. The daemon acknowledges
// before draining, so a nil return means the shutdown has begun, not that
// it has finished.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/stop", nil, nil)
}

// do runs one API round trip. A non-nil body is sent as JSON; a non-nil out
// receives the decoded response. Error statuses come back sentinel-marked.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.host+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return errors.WithHint(
				errors.Mark(errors.Newf("no warden daemon on %s", c.host), errors.ErrAgentNotRunning),
				"run 'warden start' first")
		}
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// apiError turns an error response into a sentinel-marked error carrying the
// daemon's message.
func apiError(resp *http.Response) error {
	msg := "request failed"
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}

	err := errors.Newf("%s", msg)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Mark(err, errors.ErrJobNotFound)
	case http.StatusBadRequest:
		return errors.Mark(err, errors.ErrInvalidRequest)
	case http.StatusUnauthorized:
		return errors.Mark(err, errors.ErrUnauthorized)
	case http.StatusServiceUnavailable:
		return errors.Mark(err, errors.ErrTransient)
	default:
		return errors.Wrapf(err, "daemon returned %d", resp.StatusCode)
	}
}

// Hello is the daemon's greeting frame, sent on every event stream before
// the first event.
type Hello struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Watch opens the daemon's event stream. It returns the greeting and a
// channel of events that closes when the stream ends, whether from ctx
// cancellation, a daemon shutdown, or a read error. Pings from the daemon
// are answered automatically while a read is pending.
func (c *Client) Watch(ctx context.Context) (Hello, <-chan scheduler.Event, error) {
	wsURL := url.URL{Scheme: "ws", Host: c.host, Path: "/ws"}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return Hello{}, nil, errors.WithHint(
				errors.Mark(errors.Newf("no warden daemon on %s", c.host), errors.ErrAgentNotRunning),
				"run 'warden start' first")
		}
		return Hello{}, nil, errors.Wrap(err, "failed to open event stream")
	}

	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return Hello{}, nil, errors.Wrap(err, "failed to read greeting")
	}

	events := make(chan scheduler.Event)
	done := make(chan struct{})

	// Closing the connection is the only way to unblock a pending read.
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer close(done)
		for {
			var ev scheduler.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return hello, events, nil
}
