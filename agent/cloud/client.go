// Package cloud talks to the warden cloud backend: GraphQL mutations for
// job notifications, file uploads for chart images, and the task channel
// remote commands arrive on.
//
// Every authenticated call goes through Client.Do, which owns the bearer
// header, the 401 refresh-and-retry loop, and the rate limit. Callers get
// the GraphQL data document back and decode their own slice of it.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/internal/httpclient"
	"github.com/teranos/warden/sym"
)

const (
	// DefaultRequestTimeout bounds one GraphQL round trip.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultUnauthorizedRetries is how many times a 401 response triggers
	// a token refresh and re-post before giving up.
	DefaultUnauthorizedRetries = 1

	// DefaultRetryDelay is the base for the linear backoff between 401
	// retries: attempt 1 waits 1×, attempt 2 waits 2×, and so on.
	DefaultRetryDelay = 200 * time.Millisecond

	// DefaultRequestsPerMinute caps the outbound request rate.
	DefaultRequestsPerMinute = 300
)

// Options customizes a Client. Zero values take the defaults above.
type Options struct {
	Timeout             time.Duration
	UnauthorizedRetries int
	RetryDelay          time.Duration
	RequestsPerMinute   int

	// HTTPClient overrides the SSRF-guarded default, e.g. for tests
	// against a loopback server.
	HTTPClient *httpclient.SaferClient
}

// Client posts payloads to the cloud backend, authenticating with tokens
// from a TokenStore. When authorization fails it refreshes the token and
// retries before surfacing ErrUnauthorized.
type Client struct {
	baseURL string
	tokens  *TokenStore
	http    *httpclient.SaferClient
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	retries    int
	retryDelay time.Duration

	sleep func(time.Duration)
}

func NewClient(baseURL string, tokens *TokenStore, log *zap.SugaredLogger, opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = httpclient.NewSaferClient(timeout)
	}
	retries := opts.UnauthorizedRetries
	if retries < 1 {
		retries = DefaultUnauthorizedRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		http:       httpc,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		log:        log,
		retries:    retries,
		retryDelay: retryDelay,
		sleep:      time.Sleep,
	}
}

// Do posts the payload and returns the GraphQL data document. A 401 is
// retried with a freshly refreshed token up to the configured count; when
// every attempt is rejected the call fails with ErrUnauthorized. Any other
// non-200 status and any GraphQL errors document surface as a transient
// transport error.
func (c *Client) Do(ctx context.Context, payload Payload) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	status, body, err := c.postOnce(ctx, payload, token)
	if err != nil {
		return nil, err
	}
	for attempt := 1; status == http.StatusUnauthorized && attempt <= c.retries; attempt++ {
		c.sleep(time.Duration(attempt) * c.retryDelay)
		if token, err = c.tokens.Get(ctx, true); err != nil {
			return nil, err
		}
		if status, body, err = c.postOnce(ctx, payload, token); err != nil {
			return nil, err
		}
	}

	if status == http.StatusUnauthorized {
		c.log.Errorw("Cannot post to cloud: unauthorized", "symbol", sym.Cloud)
		return nil, errors.Wrap(errors.ErrUnauthorized, "post to cloud")
	}
	if status != http.StatusOK {
		c.log.Errorw("Cloud returned an error",
			"symbol", sym.Cloud,
			"status", status,
			"body", string(body))
		return nil, errors.Mark(errors.Newf("post failed with status code %d", status), errors.ErrTransient)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode cloud response")
	}
	if len(envelope.Errors) > 0 {
		return nil, errors.Mark(errors.Newf("cloud returned error: %s", envelope.Errors[0].Message), errors.ErrTransient)
	}
	return envelope.Data, nil
}

// Post is Do for callers that only care whether the mutation landed.
func (c *Client) Post(ctx context.Context, payload Payload) error {
	_, err := c.Do(ctx, payload)
	return err
}

func (c *Client) postOnce(ctx context.Context, payload Payload, token string) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Mark(errors.Wrap(err, "post to cloud"), errors.ErrTransient)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Mark(errors.Wrap(err, "read cloud response"), errors.ErrTransient)
	}
	return resp.StatusCode, respBody, nil
}

// NotifyAgentStart announces the agent to the backend when the daemon
// comes up.
func (c *Client) NotifyAgentStart(ctx context.Context, agentVersion string) error {
	mutation := "mutation ClientStart($in: ClientStartInput!) { clientStart(input: $in) { logLevel } }"
	return c.Post(ctx, Payload{
		Query:     mutation,
		Variables: map[string]interface{}{"in": map[string]interface{}{"version": agentVersion}},
	})
}

// UploadFile pushes a local file to cloud storage. The backend hands out a
// presigned upload target first; the raw upload follows with the returned
// method and headers, no bearer token. When wantDownloadLink is set the
// serving link is returned.
func (c *Client) UploadFile(ctx context.Context, path string, wantDownloadLink bool) (string, error) {
	query := "query ($ext: String!, $download_flag: Boolean) {" +
		"uploadLink(extension: $ext, download_link: $download_flag) {" +
		"upload, download, headers, uploadMethod" +
		"}" +
		"}"
	data, err := c.Do(ctx, Payload{
		Query: query,
		Variables: map[string]interface{}{
			"ext":           fileExtension(path),
			"download_flag": wantDownloadLink,
		},
	})
	if err != nil {
		return "", err
	}

	var out struct {
		UploadLink struct {
			Upload       string   `json:"upload"`
			Download     string   `json:"download"`
			Headers      []string `json:"headers"`
			UploadMethod string   `json:"uploadMethod"`
		} `json:"uploadLink"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Wrap(err, "decode upload link")
	}
	link := out.UploadLink
	if link.Upload == "" || link.UploadMethod == "" {
		return "", errors.New("upload link response incomplete")
	}

	if err := c.uploadTo(ctx, link.UploadMethod, link.Upload, link.Headers, path); err != nil {
		return "", err
	}
	return link.Download, nil
}

func (c *Client) uploadTo(ctx context.Context, method, uploadURL string, headers []string, path string) error {
	if _, err := c.http.ValidateURL(uploadURL); err != nil {
		return errors.Wrap(err, "upload link rejected")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, method, uploadURL, bytes.NewReader(content))
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	for key, value := range parseHeaderLines(headers) {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "upload file"), errors.ErrTransient)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(resp.Body)
		c.log.Errorw("File upload failed",
			"symbol", sym.Cloud,
			"status", resp.StatusCode,
			"body", string(text))
		return errors.Newf("file upload failed with status code %d", resp.StatusCode)
	}
	return nil
}

// fileExtension returns every suffix after the first dot, so an archive
// like model.tar.gz uploads as "tar.gz". Dotfiles have no extension.
func fileExtension(path string) string {
	base := strings.TrimPrefix(filepath.Base(path), ".")
	idx := strings.Index(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}

// parseHeaderLines splits "Key: value" strings as handed back by the
// upload-link query.
func parseHeaderLines(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers
}
