package it600

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/domain/translator"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEUID = "001E5E0D32906128"

// fakeGateway speaks the encrypted protocol with a fixed device table.
type fakeGateway struct {
	t   *testing.T
	enc *Encryptor

	mu       sync.Mutex
	devices  []map[string]any
	writes   []map[string]any
	requests int
	status   string
	delay    time.Duration
}

func newFakeGateway(t *testing.T) *fakeGateway {
	return &fakeGateway{
		t:      t,
		enc:    NewEncryptor(testEUID),
		status: "success",
		devices: []map[string]any{
			{
				"data":     map[string]any{"UniID": "dev1", "Endpoint": 1},
				"sIT600TH": map[string]any{"LocalTemperature_x100": 2000, "HeatingSetpoint_x100": 2100, "HoldType": 0, "RunningState": 0},
				"sZDO":     map[string]any{"DeviceName": `{"deviceName": "Kitchen"}`},
			},
			{
				"data":   map[string]any{"UniID": "dev2", "Endpoint": 1},
				"sTherS": map[string]any{"LocalTemperature_x100": 1800, "HeatingSetpoint_x100": 1900, "HoldType": 2, "MaxHeatSetpoint_x100": 2500},
			},
		},
	}
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	plain, err := g.enc.Decrypt(raw)
	require.NoError(g.t, err)
	var req map[string]any
	require.NoError(g.t, json.Unmarshal(plain, &req))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	time.Sleep(g.delay)

	resp := map[string]any{"status": g.status}
	switch r.URL.Path {
	case "/deviceid/read":
		switch req["requestAttr"] {
		case "readall":
			ids := []any{map[string]any{
				"data":     map[string]any{"UniID": "gw"},
				"sGateway": map[string]any{"NetworkLANMAC": "00:11:22:33:44:55"},
			}}
			for _, d := range g.devices {
				ids = append(ids, d)
			}
			resp["id"] = ids
		case "deviceid":
			var out []any
			for _, item := range req["id"].([]any) {
				want := item.(map[string]any)["data"].(map[string]any)["UniID"]
				for _, d := range g.devices {
					if d["data"].(map[string]any)["UniID"] == want {
						out = append(out, d)
					}
				}
			}
			resp["id"] = out
		}
	case "/deviceid/write":
		g.writes = append(g.writes, req)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body, _ := json.Marshal(resp)
	_, _ = w.Write(g.enc.Encrypt(body))
}

func (g *fakeGateway) addThermostat(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.devices = append(g.devices, map[string]any{
		"data":     map[string]any{"UniID": id, "Endpoint": 1},
		"sIT600TH": map[string]any{"LocalTemperature_x100": 2000, "HeatingSetpoint_x100": 2000, "HoldType": 2, "RunningState": 0},
	})
}

func (g *fakeGateway) setDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

func (g *fakeGateway) recordedWrites() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.writes...)
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func newTestClient(t *testing.T, url, euid string) *Client {
	host, portStr, err := net.SplitHostPort(url[len("http://"):])
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Options{Host: host, Port: port, EUID: euid, Timeout: 2 * time.Second}, translator.NewFactory(nil), logger)
}

func startGateway(t *testing.T) (*fakeGateway, *Client) {
	g := newFakeGateway(t)
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, testEUID)
	require.NoError(t, c.Connect(context.Background()))
	return g, c
}

func TestClient_ListDevices(t *testing.T) {
	_, c := startGateway(t)

	devices, err := c.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "dev1", devices[0].ID)
	assert.Equal(t, "Kitchen", devices[0].Name)
	assert.Equal(t, 20.0, *devices[0].CurrentTemperature)
	assert.Equal(t, model.PresetFollowSchedule, devices[0].Preset)

	assert.Equal(t, "dev2", devices[1].ID)
	assert.Equal(t, model.DeviceFamilyTherS, devices[1].Family)
	assert.Equal(t, model.HVACModeHeat, devices[1].HVACMode)
}

func TestClient_GetDevice(t *testing.T) {
	_, c := startGateway(t)

	d, err := c.GetDevice(context.Background(), "dev2")
	require.NoError(t, err)
	assert.Equal(t, 19.0, *d.TargetTemperature)

	// known device: served by a single deviceid read
	d, err = c.GetDevice(context.Background(), "dev2")
	require.NoError(t, err)
	assert.Equal(t, "dev2", d.ID)

	_, err = c.GetDevice(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClient_SetTemperature(t *testing.T) {
	g, c := startGateway(t)

	d, err := c.SetTemperature(context.Background(), "dev1", 22.5)
	require.NoError(t, err)
	assert.Equal(t, 22.5, *d.TargetTemperature)
	assert.Equal(t, 2250.0, d.Attributes["HeatingSetpoint_x100"])

	writes := g.recordedWrites()
	require.Len(t, writes, 1)
	entry := writes[0]["id"].([]any)[0].(map[string]any)
	assert.Equal(t, "write", writes[0]["requestAttr"])
	assert.Equal(t, "dev1", entry["data"].(map[string]any)["UniID"])
	assert.Equal(t, map[string]any{"SetHeatingSetpoint_x100": 2250.0}, entry["sIT600TH"])
}

func TestClient_SetTemperatureOutOfRange(t *testing.T) {
	g, c := startGateway(t)

	_, err := c.SetTemperature(context.Background(), "dev2", 26)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "temperature", verr.Field)
	assert.Empty(t, g.recordedWrites())
}

func TestClient_SetPresetAndMode(t *testing.T) {
	g, c := startGateway(t)

	d, err := c.SetPreset(context.Background(), "dev2", model.PresetOff)
	require.NoError(t, err)
	assert.Equal(t, model.PresetOff, d.Preset)
	assert.Equal(t, model.HVACModeOff, d.HVACMode)

	d, err = c.SetMode(context.Background(), "dev1", model.HVACModeHeat)
	require.NoError(t, err)
	assert.Equal(t, model.PresetPermanentHold, d.Preset)

	writes := g.recordedWrites()
	require.Len(t, writes, 2)
	first := writes[0]["id"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"HoldType": 7.0}, first["sTherS"])
	second := writes[1]["id"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"SetHoldType": 2.0}, second["sIT600TH"])
}

func TestClient_UnknownDeviceCommand(t *testing.T) {
	g, c := startGateway(t)

	_, err := c.SetPreset(context.Background(), "ghost", model.PresetOff)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, g.recordedWrites())
}

func TestClient_RejectedCommand(t *testing.T) {
	g, c := startGateway(t)
	g.mu.Lock()
	g.status = "failed"
	g.mu.Unlock()

	_, err := c.ListDevices(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, ErrCommandRejected)
}

func TestClient_WrongEUID(t *testing.T) {
	g := newFakeGateway(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"status": "success"})
		_, _ = w.Write(g.enc.Encrypt(body))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "0000000000000000")
	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestClient_NoGatewayInListing(t *testing.T) {
	enc := NewEncryptor(testEUID)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"status": "success", "id": []any{}})
		_, _ = w.Write(enc.Encrypt(body))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testEUID)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrNoGateway)
}

func TestClient_ConnectionRefusedMarksSessionBroken(t *testing.T) {
	g := newFakeGateway(t)
	srv := httptest.NewServer(g)
	c := newTestClient(t, srv.URL, testEUID)
	require.NoError(t, c.Connect(context.Background()))
	srv.Close()

	_, err := c.ListDevices(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)

	c.mu.RLock()
	assert.True(t, c.broken)
	c.mu.RUnlock()
}

func TestClient_BrokenSessionHandshakesAgain(t *testing.T) {
	g, c := startGateway(t)
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()

	before := g.requestCount()
	_, err := c.ListDevices(context.Background())
	require.NoError(t, err)

	// handshake readall + listing readall + deviceid read
	assert.Equal(t, before+3, g.requestCount())
	c.mu.RLock()
	assert.False(t, c.broken)
	c.mu.RUnlock()
}

func TestClient_GateHonoursDeadline(t *testing.T) {
	_, c := startGateway(t)

	c.gate <- struct{}{}
	defer func() { <-c.gate }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListDevices(ctx)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_QueuedCommandsKeepFullBudget(t *testing.T) {
	g := newFakeGateway(t)
	g.addThermostat("dev3")
	g.addThermostat("dev4")
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, testEUID)
	c.timeout = 500 * time.Millisecond
	require.NoError(t, c.Connect(context.Background()))

	// each command costs a read and a write, well inside one budget but far
	// beyond it once four of them queue on the gate
	g.setDelay(150 * time.Millisecond)

	ids := []string{"dev1", "dev2", "dev3", "dev4"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.SetTemperature(context.Background(), id, 20)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, ids[i])
	}
	assert.Len(t, g.recordedWrites(), len(ids))
}

func TestClient_CallerCancelWhileQueued(t *testing.T) {
	_, c := startGateway(t)

	c.gate <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SetTemperature(ctx, "dev1", 20)
	<-c.gate

	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	c.mu.RLock()
	assert.False(t, c.broken)
	c.mu.RUnlock()
}

func TestClient_Closed(t *testing.T) {
	_, c := startGateway(t)
	require.NoError(t, c.Close())

	_, err := c.ListDevices(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}
