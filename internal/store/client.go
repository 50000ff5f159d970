package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/attest/internal/cluster"
	"github.com/dreamware/attest/internal/history"
)

// DefaultRequestTimeout bounds how long the adapter waits for any single
// store response.
const DefaultRequestTimeout = 5 * time.Second

// Error codes from the store's v2 wire protocol
const (
	errCodeKeyNotFound   = 100
	errCodeCompareFailed = 101
)

// ErrNotOpen is returned when Invoke is called outside the open state
var ErrNotOpen = errors.New("client not open")

// Client executes abstract register operations against one node of the
// cluster under test. Implementations classify every failure into a typed
// outcome; only errors that defy classification are returned as errors,
// and those abort the owning process's remaining schedule.
//
// Lifecycle: unopened -> open (Open) -> closed (Close). Invoke is only
// valid while open. Close is idempotent.
type Client interface {
	// Open binds the client to one node's client endpoint. No network
	// traffic happens at open time.
	Open(node cluster.Node) error

	// Invoke executes the invocation and returns the outcome type plus,
	// for reads, the observed value (nil when the key was absent). A
	// non-nil error means the failure could not be classified and the
	// caller must stop issuing operations from this process.
	Invoke(ctx context.Context, op history.Op) (history.OpType, *int, error)

	// Close releases local resources. Safe to call more than once.
	Close() error
}

type clientState int

const (
	stateUnopened clientState = iota
	stateOpen
	stateClosed
)

// HTTPClient talks to a node over the store's v2 keys HTTP API. One
// instance is owned by exactly one worker process; it is not safe for
// concurrent use and holds no state beyond the endpoint and timeout.
type HTTPClient struct {
	base    string
	hc      *http.Client
	timeout time.Duration
	state   clientState
}

// NewHTTPClient creates an unopened client. A zero timeout means
// DefaultRequestTimeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPClient{timeout: timeout}
}

// Open binds the client to node's client endpoint
func (c *HTTPClient) Open(node cluster.Node) error {
	if c.state == stateOpen {
		return errors.New("client already open")
	}
	c.base = cluster.ClientURL(node)
	c.hc = &http.Client{Timeout: c.timeout}
	c.state = stateOpen
	return nil
}

// OpenURL binds the client directly to an endpoint URL. Tests use this to
// point at in-process servers; production code goes through Open.
func (c *HTTPClient) OpenURL(base string) error {
	if c.state == stateOpen {
		return errors.New("client already open")
	}
	c.base = strings.TrimRight(base, "/")
	c.hc = &http.Client{Timeout: c.timeout}
	c.state = stateOpen
	return nil
}

// Invoke dispatches on the operation's function and classifies the result
func (c *HTTPClient) Invoke(ctx context.Context, op history.Op) (history.OpType, *int, error) {
	if c.state != stateOpen {
		return history.Fail, nil, ErrNotOpen
	}
	switch op.Func {
	case history.FuncRead:
		return c.read(ctx, op.Key)
	case history.FuncWrite:
		return c.write(ctx, op.Key, *op.Value)
	case history.FuncCAS:
		return c.cas(ctx, op.Key, *op.Old, *op.New)
	default:
		return history.Fail, nil, fmt.Errorf("unsupported op %q", op.Func)
	}
}

// Close releases the underlying connection pool. Idempotent.
func (c *HTTPClient) Close() error {
	if c.state == stateOpen {
		c.hc.CloseIdleConnections()
	}
	c.state = stateClosed
	return nil
}

// wireNode is the node object embedded in v2 responses
type wireNode struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// wireResponse is the body of a successful v2 keys response
type wireResponse struct {
	Action string   `json:"action"`
	Node   wireNode `json:"node"`
}

// wireError is the body of a v2 keys error response
type wireError struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// read fetches the key with quorum consistency. A read that times out
// provably did not change state, so it classifies as a definite fail. An
// absent key is a successful read observing nil.
func (c *HTTPClient) read(ctx context.Context, key int) (history.OpType, *int, error) {
	u := fmt.Sprintf("%s/v2/keys/%d?quorum=true", c.base, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return history.Fail, nil, fmt.Errorf("build read request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return history.Fail, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("read key %d: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body wireResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return history.Fail, nil, fmt.Errorf("decode read response: %w", err)
		}
		v, err := strconv.Atoi(body.Node.Value)
		if err != nil {
			return history.Fail, nil, fmt.Errorf("non-integer value %q for key %d", body.Node.Value, key)
		}
		return history.OK, &v, nil
	case http.StatusNotFound:
		if code, err := decodeErrorCode(resp); err == nil && code == errCodeKeyNotFound {
			return history.OK, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("read key %d: unexpected 404 body", key)
	default:
		return history.Fail, nil, fmt.Errorf("read key %d: unexpected status %d", key, resp.StatusCode)
	}
}

// write sets the key unconditionally. A timed-out write is indeterminate:
// the store may have applied it before the timeout was observed.
func (c *HTTPClient) write(ctx context.Context, key, value int) (history.OpType, *int, error) {
	resp, err := c.put(ctx, key, url.Values{"value": {strconv.Itoa(value)}})
	if err != nil {
		if isTimeout(err) {
			return history.Info, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("write key %d: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return history.OK, nil, nil
	default:
		return history.Fail, nil, fmt.Errorf("write key %d: unexpected status %d", key, resp.StatusCode)
	}
}

// cas conditionally swaps the key's value. An unmet precondition and a
// missing key are definite negatives; a timeout is indeterminate.
func (c *HTTPClient) cas(ctx context.Context, key, old, new int) (history.OpType, *int, error) {
	form := url.Values{
		"value":     {strconv.Itoa(new)},
		"prevValue": {strconv.Itoa(old)},
	}
	resp, err := c.put(ctx, key, form)
	if err != nil {
		if isTimeout(err) {
			return history.Info, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("cas key %d: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return history.OK, nil, nil
	case http.StatusPreconditionFailed:
		if code, err := decodeErrorCode(resp); err == nil && code == errCodeCompareFailed {
			return history.Fail, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("cas key %d: unexpected 412 body", key)
	case http.StatusNotFound:
		if code, err := decodeErrorCode(resp); err == nil && code == errCodeKeyNotFound {
			return history.Fail, nil, nil
		}
		return history.Fail, nil, fmt.Errorf("cas key %d: unexpected 404 body", key)
	default:
		return history.Fail, nil, fmt.Errorf("cas key %d: unexpected status %d", key, resp.StatusCode)
	}
}

func (c *HTTPClient) put(ctx context.Context, key int, form url.Values) (*http.Response, error) {
	u := fmt.Sprintf("%s/v2/keys/%d", c.base, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.hc.Do(req)
}

func decodeErrorCode(resp *http.Response) (int, error) {
	var body wireError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.ErrorCode, nil
}

// isTimeout reports whether err means the request ran out of time, either
// via the client's response-wait bound or the caller's context deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
