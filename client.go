package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConfigFetcher resolves an application reference to its server
// configuration and API descriptor. spec.md §1 places "endpoint
// discovery / configuration fetch" out of this core's scope as an
// external collaborator; this interface is that collaborator's contract.
// appReference is treated as an already-canonical root URL — URL
// canonicalization is a separate named non-goal.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context, appReference string) (*Config, error)
	FetchAPI(ctx context.Context, cfg *Config) (*APIInfo, error)
}

type httpConfigFetcher struct {
	client *http.Client
	token  string
}

func (f *httpConfigFetcher) FetchConfig(ctx context.Context, appReference string) (*Config, error) {
	var cfg Config
	if err := f.getJSON(ctx, appReference+"/config", &cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = appReference
	}
	return &cfg, nil
}

func (f *httpConfigFetcher) FetchAPI(ctx context.Context, cfg *Config) (*APIInfo, error) {
	var api APIInfo
	if err := f.getJSON(ctx, cfg.Root+"/info", &api); err != nil {
		return nil, err
	}
	return &api, nil
}

func (f *httpConfigFetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("GET %s failed", url)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Client is the Client Session of spec.md §4.7 / §3 ("Session"):
// instance-wide session identity, configuration, API map, and the
// multiplex registries (held inside mux and diffStore).
type Client struct {
	opts ClientOptions

	config *Config
	api    *APIInfo
	apiMap map[string]int

	sessionHash string

	httpClient *http.Client
	wsDialer   *websocket.Dialer
	uploader   Uploader
	jwt        JWTProvider
	auth       AuthHeaderProvider

	mux       *multiplexer
	diffStore *DiffStore
	logger    *log.Logger

	lastStatusMu sync.Mutex
	lastStatus   map[int]Stage

	heartbeatCancel context.CancelFunc
}

// New establishes a session against appReference: fetches config and the
// API descriptor via fetcher, generates a session hash, and starts the
// background heartbeat. Matches spec.md §4.7's create(appReference,
// options) contract, with config/API discovery delegated to fetcher
// (nil uses the default HTTP implementation).
func New(ctx context.Context, appReference string, opts ClientOptions, fetcher ConfigFetcher) (*Client, error) {
	opts = fillOptionDefaults(opts)

	httpClient := &http.Client{Timeout: opts.HTTPTimeout}
	if fetcher == nil {
		fetcher = &httpConfigFetcher{client: httpClient, token: opts.Token}
	}

	cfg, err := fetcher.FetchConfig(ctx, appReference)
	if err != nil {
		return nil, fmt.Errorf("gradio: fetching config: %w", err)
	}
	api, err := fetcher.FetchAPI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gradio: fetching api info: %w", err)
	}

	c := &Client{
		opts:        opts,
		config:      cfg,
		api:         api,
		apiMap:      BuildAPIMap(cfg.Dependencies),
		sessionHash: uuid.NewString()[:11],
		httpClient:  httpClient,
		wsDialer:    websocket.DefaultDialer,
		uploader:    NewHTTPUploader(httpClient),
		jwt:         NewHFSpaceJWTProvider(httpClient, ""),
		auth:        opts.AuthHeaderProvider,
		diffStore:   NewDiffStore(),
		logger:      opts.Logger,
		lastStatus:  make(map[int]Stage),
	}
	c.mux = newMultiplexer(httpStreamDialer{client: httpClient}, c.logger)

	hbCtx, cancel := context.WithCancel(context.Background())
	c.heartbeatCancel = cancel
	go c.runHeartbeat(hbCtx)

	return c, nil
}

func fillOptionDefaults(opts ClientOptions) ClientOptions {
	defaults := defaultClientOptions()
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = defaults.HTTPTimeout
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	return opts
}

// Close stops the background heartbeat and closes the multiplex stream,
// if any. It does not cancel outstanding submissions — callers own that
// via each Handle.
func (c *Client) Close() {
	if c.heartbeatCancel != nil {
		c.heartbeatCancel()
	}
	c.mux.close()
}

func (c *Client) setAuth(req *http.Request) {
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
}

func (c *Client) stageFor(fnIndex int) Stage {
	c.lastStatusMu.Lock()
	defer c.lastStatusMu.Unlock()
	return c.lastStatus[fnIndex]
}

func (c *Client) setStage(fnIndex int, stage Stage) {
	c.lastStatusMu.Lock()
	c.lastStatus[fnIndex] = stage
	c.lastStatusMu.Unlock()
}

// Submit is the Submission Engine's public entry point (C6): resolve the
// endpoint, prepare the payload (uploading any blobs), pick a transport
// per spec.md §4.6's table, and start that transport's goroutine. It
// returns immediately with a Handle; events arrive via On callbacks.
func (c *Client) Submit(ctx context.Context, endpoint string, args []any, opts ...SubmitOption) (*Handle, error) {
	var p submitParams
	for _, o := range opts {
		o(&p)
	}

	resolved, err := Resolve(endpoint, c.api, c.apiMap, c.config)
	if err != nil {
		return nil, err
	}

	payload, err := Prepare(ctx, c.config.Root, args, resolved.APIInfo, c.uploader, c.opts.Token)
	if err != nil {
		return nil, err
	}

	transport := selectTransport(c.config, resolved.Dependency)
	sub := newSubmission(c, resolved.FnIndex, resolved.EndpointPath, payload, resolved.Dependency, transport, p)
	sub.stage = c.stageFor(resolved.FnIndex)

	sub.emitStatus(&StatusEvent{
		Stage: StagePending,
		Queue: transport != transportDirect,
	})

	switch transport {
	case transportDirect:
		go c.runDirect(ctx, sub)
	case transportWS:
		go c.runWS(ctx, sub)
	case transportSSELegacy:
		go c.runSSELegacy(ctx, sub)
	case transportSSEMux:
		go c.runSSEMux(ctx, sub)
	}

	return &Handle{sub: sub}, nil
}

func selectTransport(cfg *Config, dep Dependency) transportKind {
	if dep.SkipQueue {
		return transportDirect
	}
	switch cfg.Protocol {
	case "ws":
		return transportWS
	case "sse":
		return transportSSELegacy
	default:
		return transportSSEMux
	}
}

// Predict is the convenience wrapper of spec.md §4.7: submit and block
// until the terminal status, returning the last data payload observed
// (nil if the submission errored, with the error describing why).
func (c *Client) Predict(ctx context.Context, endpoint string, args []any, opts ...SubmitOption) ([]any, error) {
	h, err := c.Submit(ctx, endpoint, args, opts...)
	if err != nil {
		return nil, err
	}

	type result struct {
		data []any
		err  error
	}
	done := make(chan result, 1)
	var last []any

	h.On(EventData, func(ev Event) {
		last = ev.Data.Data
	})
	h.On(EventStatus, func(ev Event) {
		switch ev.Status.Stage {
		case StageComplete:
			done <- result{data: last}
		case StageError:
			done <- result{err: &ServerError{Message: ev.Status.Message}}
		}
	})

	select {
	case <-ctx.Done():
		h.Cancel(ctx)
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

// ComponentServer proxies one call to a Blocks app's component_server
// endpoint (spec.md §4.7: "pass-through POST to component endpoint; not
// part of the hard core").
func (c *Client) ComponentServer(ctx context.Context, componentID int, fnName string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/component_server/%d/%s", c.config.Root, componentID, fnName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &BrokenConnectionError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "component_server call failed"}
	}
	return io.ReadAll(resp.Body)
}
