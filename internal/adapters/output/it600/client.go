package it600

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/domain/translator"
	"sort"
	"strconv"
	"sync"
	"time"
)

type Options struct {
	Host    string
	Port    int
	EUID    string
	Timeout time.Duration
}

type knownDevice struct {
	data   map[string]any
	family model.DeviceFamily
}

// Client is the local session to an iT600 gateway. The gateway handles a
// single request at a time, so every round trip goes through one gate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	enc        *Encryptor
	factory    *translator.Factory
	logger     *slog.Logger

	gate chan struct{}

	mu        sync.RWMutex
	connected bool
	broken    bool
	closed    bool
	known     map[string]knownDevice
}

func NewClient(opts Options, factory *translator.Factory, logger *slog.Logger) *Client {
	port := opts.Port
	if port == 0 {
		port = 80
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    "http://" + net.JoinHostPort(opts.Host, strconv.Itoa(port)),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		enc:        NewEncryptor(opts.EUID),
		factory:    factory,
		logger:     logger,
		gate:       make(chan struct{}, 1),
		known:      make(map[string]knownDevice),
	}
}

// Connect performs the initial handshake. It fails when the gateway does
// not answer, the EUID is wrong or the listing holds no gateway.
func (c *Client) Connect(ctx context.Context) error {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return c.handshake(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) ListDevices(ctx context.Context) ([]*model.Device, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	docs, err := c.readClimate(ctx)
	if err != nil {
		return nil, err
	}
	devices := make([]*model.Device, 0, len(docs))
	for _, doc := range docs {
		if d, ok := c.factory.ToDevice(doc); ok {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (c *Client) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	device, _, err := c.lookup(ctx, id)
	return device, err
}

func (c *Client) SetTemperature(ctx context.Context, id string, celsius float64) (*model.Device, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	device, known, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if celsius < device.MinTemperature || celsius > device.MaxTemperature {
		return nil, &model.ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("temperature must be between %g and %g", device.MinTemperature, device.MaxTemperature),
		}
	}

	t, _ := c.factory.GetTranslator(known.family)
	if err := c.write(ctx, known, t.SetpointPayload(celsius)); err != nil {
		return nil, err
	}
	translator.ApplySetpoint(device, celsius)
	return device, nil
}

func (c *Client) SetMode(ctx context.Context, id string, mode model.HVACMode) (*model.Device, error) {
	return c.setHold(ctx, id, translator.HoldForMode(mode))
}

func (c *Client) SetPreset(ctx context.Context, id string, preset model.Preset) (*model.Device, error) {
	return c.setHold(ctx, id, translator.HoldForPreset(preset))
}

func (c *Client) setHold(ctx context.Context, id string, hold translator.HoldType) (*model.Device, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	device, known, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	t, _ := c.factory.GetTranslator(known.family)
	if err := c.write(ctx, known, t.HoldPayload(hold)); err != nil {
		return nil, err
	}
	translator.ApplyHold(device, hold)
	return device, nil
}

// acquire waits for the gate under the caller's ctx. The operation budget
// starts only once the gate is held, so callers queued behind a slow
// gateway do not spend their timeout waiting. release frees both.
func (c *Client) acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: waiting for gateway: %w", model.ErrUpstreamUnavailable, ctx.Err())
	}
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return opCtx, func() {
		cancel()
		<-c.gate
	}, nil
}

// ensureSession re-runs the handshake after a transport failure. The gate
// must be held.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.RLock()
	closed, healthy := c.closed, c.connected && !c.broken
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ErrClosed)
	}
	if healthy {
		return nil
	}
	c.logger.Info("reconnecting to gateway", "url", c.baseURL)
	return c.handshake(ctx)
}

func (c *Client) handshake(ctx context.Context) error {
	docs, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, doc := range docs {
		if gw, ok := doc["sGateway"].(map[string]any); ok {
			if mac, _ := gw["NetworkLANMAC"].(string); mac != "" {
				found = true
				break
			}
		}
	}
	if !found {
		return fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ErrNoGateway)
	}

	c.mu.Lock()
	c.connected = true
	c.broken = false
	c.mu.Unlock()
	return nil
}

// lookup reads a single device, refreshing the listing when the id is
// unknown or has disappeared.
func (c *Client) lookup(ctx context.Context, id string) (*model.Device, knownDevice, error) {
	c.mu.RLock()
	known, ok := c.known[id]
	c.mu.RUnlock()

	if ok {
		docs, err := c.readDevices(ctx, []map[string]any{known.data})
		if err != nil {
			return nil, knownDevice{}, err
		}
		if d, k, found := c.find(docs, id); found {
			return d, k, nil
		}
	}

	docs, err := c.readClimate(ctx)
	if err != nil {
		return nil, knownDevice{}, err
	}
	if d, k, found := c.find(docs, id); found {
		return d, k, nil
	}
	return nil, knownDevice{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
}

func (c *Client) find(docs []map[string]any, id string) (*model.Device, knownDevice, bool) {
	for _, doc := range docs {
		d, ok := c.factory.ToDevice(doc)
		if !ok || d.ID != id {
			continue
		}
		data, _ := doc["data"].(map[string]any)
		return d, knownDevice{data: data, family: d.Family}, true
	}
	return nil, knownDevice{}, false
}

func (c *Client) readAll(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.roundTrip(ctx, "read", map[string]any{"requestAttr": "readall"})
	if err != nil {
		return nil, err
	}
	return documents(resp), nil
}

// readClimate lists every climate device with its full status and
// replaces the known device table.
func (c *Client) readClimate(ctx context.Context) ([]map[string]any, error) {
	all, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var ids []map[string]any
	for _, doc := range all {
		if _, ok := c.factory.Detect(doc); !ok {
			continue
		}
		if data, ok := doc["data"].(map[string]any); ok {
			ids = append(ids, data)
		}
	}

	docs := []map[string]any{}
	if len(ids) > 0 {
		if docs, err = c.readDevices(ctx, ids); err != nil {
			return nil, err
		}
	}

	known := make(map[string]knownDevice, len(docs))
	for _, doc := range docs {
		family, ok := c.factory.Detect(doc)
		data, _ := doc["data"].(map[string]any)
		id, _ := data["UniID"].(string)
		if !ok || id == "" {
			continue
		}
		known[id] = knownDevice{data: data, family: family}
	}
	c.mu.Lock()
	c.known = known
	c.mu.Unlock()
	return docs, nil
}

func (c *Client) readDevices(ctx context.Context, dataBlocks []map[string]any) ([]map[string]any, error) {
	ids := make([]map[string]any, 0, len(dataBlocks))
	for _, data := range dataBlocks {
		ids = append(ids, map[string]any{"data": data})
	}
	resp, err := c.roundTrip(ctx, "read", map[string]any{"requestAttr": "deviceid", "id": ids})
	if err != nil {
		return nil, err
	}
	return documents(resp), nil
}

func (c *Client) write(ctx context.Context, known knownDevice, payload map[string]any) error {
	entry := map[string]any{"data": known.data}
	for k, v := range payload {
		entry[k] = v
	}
	_, err := c.roundTrip(ctx, "write", map[string]any{"requestAttr": "write", "id": []map[string]any{entry}})
	return err
}

// roundTrip sends one encrypted request. Transport and decoding failures
// mark the session broken so the next call re-handshakes.
func (c *Client) roundTrip(ctx context.Context, kind string, body map[string]any) (map[string]any, error) {
	plain, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/deviceid/" + kind
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(c.enc.Encrypt(plain)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
		if errors.Is(ctx.Err(), context.Canceled) {
			// the caller went away, the gateway did not fail
			return nil, err
		}
		return nil, c.fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(fmt.Errorf("%w: gateway returned HTTP %d", model.ErrUpstreamUnavailable, resp.StatusCode))
	}

	decrypted, err := c.enc.Decrypt(raw)
	if err != nil {
		return nil, c.fail(fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ErrAuthentication))
	}
	var out map[string]any
	if err := json.Unmarshal(decrypted, &out); err != nil {
		return nil, c.fail(fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ErrAuthentication))
	}

	c.logger.Debug("gateway round trip", "request", kind, "attr", body["requestAttr"], "duration", time.Since(start))

	if status, _ := out["status"].(string); status != "success" {
		return nil, fmt.Errorf("%w: %w (status %q)", model.ErrUpstreamUnavailable, ErrCommandRejected, status)
	}
	return out, nil
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	wasHealthy := c.connected && !c.broken
	c.broken = true
	c.mu.Unlock()
	if wasHealthy && !errors.Is(err, context.Canceled) {
		c.logger.Warn("gateway session marked broken", "error", err)
	}
	return err
}

func documents(resp map[string]any) []map[string]any {
	list, _ := resp["id"].([]any)
	docs := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if doc, ok := item.(map[string]any); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}
