package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/lifi/adapter"
	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/log"
	"github.com/pithecene-io/lifi/metrics"
	"github.com/pithecene-io/lifi/receiver"
	"github.com/pithecene-io/lifi/sink"
)

const (
	tok0 = "L1FB,1,foo.txt,3,0,VGVzdA=="
	tok1 = "L1FB,1,foo.txt,3,1,IGRhdGE="
	tok2 = "L1FB,1,foo.txt,3,2,IQ=="
	// Same index and content as tok1 but a distinct token string.
	tok1Unpadded = "L1FB,1,foo.txt,3,1,IGRhdGE"
)

type fakeDevice struct {
	starts, stops int
	stopErr       error
}

func (d *fakeDevice) Start(context.Context) error { d.starts++; return nil }
func (d *fakeDevice) Stop() error {
	d.stops++
	return d.stopErr
}

type recordingAdapter struct {
	events []*adapter.TransferCompletedEvent
	err    error
}

func (a *recordingAdapter) Publish(_ context.Context, ev *adapter.TransferCompletedEvent) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAdapter) Close() error { return nil }

type fixture struct {
	station *Station
	device  *fakeDevice
	sink    *sink.StubSink
	adapter *recordingAdapter
	metrics *metrics.Collector
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, autoSave bool) *fixture {
	t.Helper()
	f := &fixture{
		device:  &fakeDevice{},
		sink:    sink.NewStubSink(),
		adapter: &recordingAdapter{},
		metrics: metrics.NewCollector("rx-test", "test", "stub"),
		logs:    &bytes.Buffer{},
	}
	f.station = NewStation(Config{
		ReceiverID: "rx-test",
		Device:     f.device,
		Sink:       f.sink,
		Adapter:    f.adapter,
		Metrics:    f.metrics,
		Logger:     log.NewLogger("rx-test").WithOutput(f.logs),
		AutoSave:   autoSave,
		Now:        func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return f
}

func TestStation_ExampleScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()

	wantReceived := []int{1, 1, 1, 2, 3}
	for i, tok := range []string{tok1, tok1, tok1Unpadded, tok0, tok2} {
		f.station.Observe(ctx, tok)
		if got := f.station.Status().Received; got != wantReceived[i] {
			t.Errorf("after token %d: received = %d, want %d", i, got, wantReceived[i])
		}
	}

	st := f.station.Status()
	if !st.Ready || st.Bytes != 10 {
		t.Errorf("status = %+v, want ready with 10 bytes", st)
	}
	if st.Line() != "Lifi Receiver receiving foo.txt 3/3 chunks, 10 bytes" {
		t.Errorf("Line() = %q", st.Line())
	}

	res := f.station.Observe(ctx, "BAD,1,foo.txt,3,0,xx")
	if res.Outcome != receiver.OutcomeRejected {
		t.Errorf("bad token outcome = %v", res.Outcome)
	}

	snap := f.metrics.Snapshot()
	if snap.TokensObserved != 6 || snap.TokensDuplicate != 1 || snap.ChunksApplied != 3 ||
		snap.ChunksRedundant != 1 || snap.SessionsStarted != 1 || snap.SessionsComplete != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}
	if snap.RejectedByKind["bad_signature"] != 1 {
		t.Errorf("RejectedByKind = %v", snap.RejectedByKind)
	}
	if len(f.sink.Saves) != 0 {
		t.Error("nothing should be saved without AutoSave or Save")
	}
}

func TestStation_SaveIncomplete(t *testing.T) {
	f := newFixture(t, false)
	f.station.Observe(t.Context(), tok0)

	if _, err := f.station.Save(t.Context()); !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("Save = %v, want ErrNothingToSave", err)
	}
	if len(f.sink.Saves) != 0 || len(f.adapter.events) != 0 {
		t.Error("incomplete save must not reach sink or adapter")
	}
	if !strings.Contains(f.logs.String(), "nothing to save yet") {
		t.Error("expected a diagnostic for the no-op save")
	}
}

func TestStation_Save(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()
	for _, tok := range []string{tok2, tok0, tok1} {
		f.station.Observe(ctx, tok)
	}

	saved, err := f.station.Save(ctx)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Location != "stub://foo.txt" || saved.Bytes != 10 || saved.TotalChunks != 3 {
		t.Errorf("saved = %+v", saved)
	}
	if string(f.sink.Saves[0].Data) != "Test data!" {
		t.Errorf("sink data = %q", f.sink.Saves[0].Data)
	}

	if len(f.adapter.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.adapter.events))
	}
	ev := f.adapter.events[0]
	if ev.ReceiverID != "rx-test" || ev.Filename != "foo.txt" || ev.Location != "stub://foo.txt" ||
		ev.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("event = %+v", ev)
	}

	// Saving again is allowed without a reset.
	if _, err := f.station.Save(ctx); err != nil {
		t.Errorf("second Save failed: %v", err)
	}
	if len(f.station.Saved()) != 2 {
		t.Errorf("Saved() = %d entries, want 2", len(f.station.Saved()))
	}
}

func TestStation_SaveFailures(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()
	for _, tok := range []string{tok0, tok1, tok2} {
		f.station.Observe(ctx, tok)
	}

	f.sink.Err = errors.New("disk full")
	if _, err := f.station.Save(ctx); err == nil {
		t.Fatal("expected sink error")
	}
	if f.station.LastSaveError() == nil {
		t.Error("LastSaveError should be set")
	}
	if f.metrics.Snapshot().SavesFailed != 1 {
		t.Error("SavesFailed not counted")
	}

	// Publish failure does not fail the save.
	f.sink.Err = nil
	f.adapter.err = errors.New("webhook down")
	if _, err := f.station.Save(ctx); err != nil {
		t.Fatalf("Save failed on publish error: %v", err)
	}
	if f.station.LastSaveError() != nil {
		t.Error("successful save should clear LastSaveError")
	}
	if f.metrics.Snapshot().PublishFailures != 1 {
		t.Error("PublishFailures not counted")
	}
}

func TestStation_NoSink(t *testing.T) {
	s := NewStation(Config{})
	ctx := t.Context()
	for _, tok := range []string{tok0, tok1, tok2} {
		s.Observe(ctx, tok)
	}
	if _, err := s.Save(ctx); !errors.Is(err, ErrNoSink) {
		t.Errorf("Save = %v, want ErrNoSink", err)
	}
}

func TestStation_AutoSaveOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()
	for _, tok := range []string{tok0, tok1, tok2, tok1Unpadded, tok0} {
		f.station.Observe(ctx, tok)
	}
	if len(f.sink.Saves) != 1 {
		t.Errorf("auto-save ran %d times, want 1", len(f.sink.Saves))
	}
}

func TestStation_ScanningControl(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()

	if f.station.Status().PlayLabel != PlayLabelScan {
		t.Error("stopped station should offer Scan")
	}
	_ = f.station.Toggle(ctx)
	if !f.station.Scanning() || f.station.Status().PlayLabel != PlayLabelPause {
		t.Error("toggle should start scanning")
	}
	_ = f.station.SetScanning(ctx, true)
	_ = f.station.Toggle(ctx)
	_ = f.station.SetScanning(ctx, false)

	if f.device.starts != 1 || f.device.stops != 1 {
		t.Errorf("starts=%d stops=%d, want 1/1", f.device.starts, f.device.stops)
	}
}

func TestStation_Reset(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()
	_ = f.station.SetScanning(ctx, true)
	f.station.Observe(ctx, tok0)

	f.device.stopErr = errors.New("camera busy")
	if err := f.station.Reset(); err == nil {
		t.Error("expected stop error to surface")
	}

	st := f.station.Status()
	if st.Live() || st.Filename != "" || st.Received != 0 || st.Total != 0 || st.Bytes != 0 {
		t.Errorf("status after reset = %+v", st)
	}
	if _, ok := f.station.Controller().LastToken(); ok {
		t.Error("last token should be cleared")
	}
	if f.metrics.Snapshot().Resets != 1 {
		t.Error("reset not counted")
	}

	// The same token is accepted again after reset.
	if res := f.station.Observe(ctx, tok0); res.Outcome != receiver.OutcomeApplied {
		t.Errorf("outcome after reset = %v, want applied", res.Outcome)
	}
}

func TestStation_ResetStopsDevice(t *testing.T) {
	f := newFixture(t, false)
	_ = f.station.SetScanning(t.Context(), true)
	if err := f.station.Reset(); err != nil {
		t.Fatal(err)
	}
	if f.station.Scanning() || f.device.stops != 1 {
		t.Errorf("scanning=%v stops=%d", f.station.Scanning(), f.device.stops)
	}
	// Reset from a stopped state issues no redundant stop.
	_ = f.station.Reset()
	if f.device.stops != 1 {
		t.Errorf("redundant stop issued: stops=%d", f.device.stops)
	}
}

func TestStation_MismatchLogged(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()
	f.station.Observe(ctx, tok0)
	res := f.station.Observe(ctx, "L1FB,1,bar.txt,1,0,eA==")
	if res.Outcome != receiver.OutcomeMismatch {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if !strings.Contains(f.logs.String(), `"packet_filename":"bar.txt"`) {
		t.Errorf("mismatch not logged: %s", f.logs.String())
	}
	if !strings.Contains(f.logs.String(), `"filename":"foo.txt"`) {
		t.Error("session logs should carry the session filename")
	}
}

func TestStation_Run(t *testing.T) {
	f := newFixture(t, true)
	src := capture.NewSliceSource(tok0, "noise", tok1, tok1, tok2)

	st, err := f.station.Run(t.Context(), src)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !st.Ready {
		t.Errorf("final status = %+v", st)
	}
	if len(f.sink.Saves) != 1 {
		t.Errorf("saves = %d, want 1", len(f.sink.Saves))
	}
}

func TestStation_RunCanceled(t *testing.T) {
	f := newFixture(t, false)
	ch := make(chan string)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := f.station.Run(ctx, capture.NewChannelSource(ch)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
