package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/adapter/fake"
	"github.com/cat-control/ccc/internal/config"
	"github.com/cat-control/ccc/internal/telemetry"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (p *recordingPublisher) PublishType(eventType string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, telemetry.Event{Type: eventType, Data: data})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type recordedAction struct {
	action string
	params map[string]interface{}
	err    error
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []recordedAction
}

func (a *recordingAudit) LogAction(ctx context.Context, action string, params map[string]interface{}, err error, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, recordedAction{action: action, params: params, err: err})
}

func (a *recordingAudit) last() recordedAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actions[len(a.actions)-1]
}

func newTestOrchestrator() (*Orchestrator, *fake.FakeAdapter, *recordingPublisher, *recordingAudit) {
	fa := fake.NewFakeAdapter()
	pub := &recordingPublisher{}
	aud := &recordingAudit{}
	orch := NewOrchestrator(fa, pub, aud, config.Baseline().Command)
	return orch, fa, pub, aud
}

func TestConnectPublishesAndAudits(t *testing.T) {
	orch, _, pub, aud := newTestOrchestrator()

	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	assert.Equal(t, []string{telemetry.EventConnected}, pub.types())
	last := aud.last()
	assert.Equal(t, "connect", last.action)
	assert.NoError(t, last.err)
	assert.Equal(t, "/dev/ttyUSB0", last.params["port"])
	assert.True(t, orch.State().Connected)
}

func TestConnectFailurePublishesFault(t *testing.T) {
	orch, fa, pub, aud := newTestOrchestrator()
	fa.SetFailConnect(true)

	err := orch.Connect(context.Background(), "/dev/ttyUSB0")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrConnection)

	assert.Equal(t, []string{telemetry.EventFault}, pub.types())
	assert.ErrorIs(t, aud.last().err, adapter.ErrConnection)
}

func TestDisconnectPublishesEvent(t *testing.T) {
	orch, _, pub, _ := newTestOrchestrator()
	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	require.NoError(t, orch.Disconnect(context.Background()))
	require.NoError(t, orch.Disconnect(context.Background()))

	assert.Equal(t, []string{
		telemetry.EventConnected,
		telemetry.EventDisconnected,
		telemetry.EventDisconnected,
	}, pub.types())
}

func TestSetFrequencyRejectsNegativeBeforeAdapter(t *testing.T) {
	orch, _, pub, aud := newTestOrchestrator()
	// Deliberately not connected: validation must fire first.

	err := orch.SetFrequency(context.Background(), -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrValue)
	assert.NotErrorIs(t, err, adapter.ErrNotConnected)

	assert.Empty(t, pub.types())
	assert.Equal(t, "setFrequency", aud.last().action)
}

func TestSetFrequencyRejectsTooLarge(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator()

	err := orch.SetFrequency(context.Background(), 10_000_000_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrValue)
}

func TestSetFrequencyPublishesChange(t *testing.T) {
	orch, fa, pub, _ := newTestOrchestrator()
	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	require.NoError(t, orch.SetFrequency(context.Background(), 7_100_000))

	assert.Equal(t, []string{telemetry.EventConnected, telemetry.EventFrequencyChanged}, pub.types())
	assert.Equal(t, uint64(7_100_000), fa.State().FrequencyHz)
}

func TestGetFrequencyReturnsAdapterValue(t *testing.T) {
	orch, _, _, aud := newTestOrchestrator()
	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	hz, err := orch.GetFrequency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(145_000_000), hz)
	assert.Equal(t, "getFrequency", aud.last().action)
}

func TestSendRawWhileDisconnectedFaults(t *testing.T) {
	orch, _, pub, _ := newTestOrchestrator()

	_, err := orch.SendRaw(context.Background(), []byte{0x03})
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrNotConnected)

	require.Len(t, pub.events, 1)
	assert.Equal(t, telemetry.EventFault, pub.events[0].Type)
	assert.Equal(t, "NOT_CONNECTED", pub.events[0].Data["code"])
}

func TestSendRawReturnsResponse(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator()
	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	resp, err := orch.SendRaw(context.Background(), []byte{0x00, 0x00, 0x00, 0x00, 0xE7})
	require.NoError(t, err)
	assert.Len(t, resp, 5)
}

func TestOperationsSerializeUnderConcurrency(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator()
	require.NoError(t, orch.Connect(context.Background(), "/dev/ttyUSB0"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(hz int64) {
			defer wg.Done()
			_ = orch.SetFrequency(context.Background(), 144_000_000+hz)
			_, _ = orch.GetFrequency(context.Background())
		}(int64(i))
	}
	wg.Wait()

	hz, err := orch.GetFrequency(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hz, uint64(144_000_000))
	assert.Less(t, hz, uint64(144_000_010))
}
