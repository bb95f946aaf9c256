package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	storagev1 "github.com/yndnr/mirrorsync/api/proto/v1"
	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/storage"
)

// Default client settings.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultReconnectDelay = time.Second
)

// Client is a storage.Backend served by a remote mirrorsync-server.
type Client struct {
	origin         string
	timeout        time.Duration
	reconnectDelay time.Duration
	logger         *slog.Logger
	clock          clockwork.Clock

	get    *connect.Client[structpb.Struct, structpb.Struct]
	set    *connect.Client[structpb.Struct, emptypb.Empty]
	remove *connect.Client[structpb.Struct, emptypb.Empty]
	keys   *connect.Client[emptypb.Empty, structpb.ListValue]
	watch  *connect.Client[emptypb.Empty, structpb.Struct]

	mu      sync.Mutex
	closed  bool
	cancels map[uint64]context.CancelFunc
	nextID  uint64
	wg      sync.WaitGroup
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient     connect.HTTPClient
	timeout        time.Duration
	reconnectDelay time.Duration
	logger         *slog.Logger
	clock          clockwork.Clock
	connectOpts    []connect.ClientOption
}

// WithHTTPClient sets the HTTP client. Server streams need a client without
// an overall request timeout.
func WithHTTPClient(c connect.HTTPClient) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithTLSConfig connects over HTTPS with cfg, e.g. to trust a private CA.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *clientOptions) {
		o.httpClient = &http.Client{Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			TLSClientConfig:   cfg,
			ForceAttemptHTTP2: true,
		}}
	}
}

// WithTimeout bounds each unary call.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithReconnectDelay sets the pause before re-opening a failed watch stream.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *clientOptions) { o.reconnectDelay = d }
}

// WithClock sets the clock that times reconnect delays.
func WithClock(clock clockwork.Clock) Option {
	return func(o *clientOptions) { o.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) Option {
	return func(o *clientOptions) {
		if token != "" {
			o.connectOpts = append(o.connectOpts, connect.WithInterceptors(bearerInterceptor(token)))
		}
	}
}

// WithConnectOptions passes options to every Connect client.
func WithConnectOptions(opts ...connect.ClientOption) Option {
	return func(o *clientOptions) { o.connectOpts = append(o.connectOpts, opts...) }
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:7480".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote: address is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	o := clientOptions{
		httpClient:     http.DefaultClient,
		timeout:        DefaultTimeout,
		reconnectDelay: DefaultReconnectDelay,
		logger:         slog.Default(),
		clock:          clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}

	return &Client{
		origin:         ulid.Make().String(),
		timeout:        o.timeout,
		reconnectDelay: o.reconnectDelay,
		logger:         o.logger,
		clock:          o.clock,
		get:            connect.NewClient[structpb.Struct, structpb.Struct](o.httpClient, baseURL+storagev1.GetProcedure, o.connectOpts...),
		set:            connect.NewClient[structpb.Struct, emptypb.Empty](o.httpClient, baseURL+storagev1.SetProcedure, o.connectOpts...),
		remove:         connect.NewClient[structpb.Struct, emptypb.Empty](o.httpClient, baseURL+storagev1.RemoveProcedure, o.connectOpts...),
		keys:           connect.NewClient[emptypb.Empty, structpb.ListValue](o.httpClient, baseURL+storagev1.KeysProcedure, o.connectOpts...),
		watch:          connect.NewClient[emptypb.Empty, structpb.Struct](o.httpClient, baseURL+storagev1.WatchProcedure, o.connectOpts...),
		cancels:        make(map[uint64]context.CancelFunc),
	}, nil
}

// Name implements storage.Named.
func (c *Client) Name() string { return "remote" }

// Origin is the identity this client stamps on its writes. Changes relayed
// back with the same origin were made by this client.
func (c *Client) Origin() string { return c.origin }

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Get fetches key from the server.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.isClosed() {
		return "", false, domain.ErrBackendClosed
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	resp, err := c.get.CallUnary(ctx, connect.NewRequest(storagev1.KeyRequest(key)))
	if err != nil {
		return "", false, fromConnectError("get", err)
	}
	if !storagev1.GetBool(resp.Msg, storagev1.FieldFound) {
		return "", false, nil
	}
	return storagev1.GetString(resp.Msg, storagev1.FieldValue), true, nil
}

// Set stores value under key on the server.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if c.isClosed() {
		return domain.ErrBackendClosed
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	req := connect.NewRequest(storagev1.Fields{
		storagev1.FieldKey:   storagev1.String(key),
		storagev1.FieldValue: storagev1.String(value),
	}.Struct())
	req.Header().Set(storagev1.OriginHeader, c.origin)

	if _, err := c.set.CallUnary(ctx, req); err != nil {
		return fromConnectError("set", err)
	}
	return nil
}

// Remove deletes key on the server.
func (c *Client) Remove(ctx context.Context, key string) error {
	if c.isClosed() {
		return domain.ErrBackendClosed
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	req := connect.NewRequest(storagev1.KeyRequest(key))
	req.Header().Set(storagev1.OriginHeader, c.origin)

	if _, err := c.remove.CallUnary(ctx, req); err != nil {
		return fromConnectError("remove", err)
	}
	return nil
}

// Keys lists the server's keys.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	if c.isClosed() {
		return nil, domain.ErrBackendClosed
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	resp, err := c.keys.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, fromConnectError("keys", err)
	}
	return storagev1.Strings(resp.Msg), nil
}

// Watch implements storage.Watchable over a server stream.
func (c *Client) Watch(fn func(storage.Change)) (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrBackendClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := c.nextID
	c.nextID++
	c.cancels[id] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.watchLoop(ctx, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.cancels, id)
			c.mu.Unlock()
			cancel()
		})
	}, nil
}

// watchLoop keeps a stream open until ctx ends. Once a stream after the
// first is subscribed, a Resync change is delivered, since changes made
// while it was down were never relayed.
func (c *Client) watchLoop(ctx context.Context, fn func(storage.Change)) {
	for reconnect := false; ; reconnect = true {
		err := c.receive(ctx, fn, reconnect)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("remote watch interrupted, reconnecting",
			"error", err,
			"delay", c.reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.reconnectDelay):
		}
	}
}

func (c *Client) receive(ctx context.Context, fn func(storage.Change), resync bool) error {
	stream, err := c.watch.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		msg := stream.Msg()
		if storagev1.GetBool(msg, storagev1.FieldReady) {
			if resync {
				fn(storage.Change{Resync: true})
			}
			continue
		}
		fn(storage.Change{
			Key:      storagev1.GetString(msg, storagev1.FieldKey),
			NewValue: storagev1.GetString(msg, storagev1.FieldNewValue),
			OldValue: storagev1.GetString(msg, storagev1.FieldOldValue),
			Removed:  storagev1.GetBool(msg, storagev1.FieldRemoved),
			Origin:   storagev1.GetString(msg, storagev1.FieldOrigin),
		})
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}

// Close stops every watch stream. Calls after Close fail with
// ErrBackendClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, cancel := range c.cancels {
		cancel()
		delete(c.cancels, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// fromConnectError maps Connect codes back onto domain errors.
func fromConnectError(op string, err error) error {
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable:
		return domain.ErrBackendUnavailable.WithDetails("remote " + op).WithCause(err)
	case connect.CodeCanceled:
		return fmt.Errorf("remote: %s: %w", op, context.Canceled)
	case connect.CodeDeadlineExceeded:
		return fmt.Errorf("remote: %s: %w", op, context.DeadlineExceeded)
	default:
		return fmt.Errorf("remote: %s: %w", op, err)
	}
}
