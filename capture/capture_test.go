package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func drain(t *testing.T, src Source) []string {
	t.Helper()
	var out []string
	for {
		tok, err := src.Next(t.Context())
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, tok)
	}
}

func TestLineSource(t *testing.T) {
	input := "L1FB,1,a,1,0,eA==\r\n\nQR-Code:L1FB,1,b,1,0,eQ==\nlast-no-newline"
	src := NewLineSource(strings.NewReader(input))
	src.TrimPrefix = "QR-Code:"
	defer func() { _ = src.Close() }()

	got := drain(t, src)
	want := []string{"L1FB,1,a,1,0,eA==", "L1FB,1,b,1,0,eQ==", "last-no-newline"}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}

	// Exhausted source keeps reporting EOF.
	if _, err := src.Next(t.Context()); err != io.EOF {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}
}

func TestLineSource_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	src := NewLineSource(pr)
	defer func() { _ = src.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next on canceled ctx = %v, want context.Canceled", err)
	}
}

func TestChannelSource(t *testing.T) {
	ch := make(chan string, 2)
	ch <- "a"
	ch <- "b"
	close(ch)

	got := drain(t, NewChannelSource(ch))
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("got %q, want [a b]", got)
	}
}

func TestSliceSource(t *testing.T) {
	got := drain(t, NewSliceSource("x", "x", "y"))
	if strings.Join(got, ",") != "x,x,y" {
		t.Errorf("got %q, want repeats preserved", got)
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	enc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	tokens := []string{"L1FB,1,foo.txt,3,0,VGVzdA==", "L1FB,1,foo.txt,3,0,VGVzdA==", "garbage"}
	for _, tok := range tokens {
		if err := enc.WriteToken(tok); err != nil {
			t.Fatalf("WriteToken failed: %v", err)
		}
	}

	dec := NewFrameDecoder(&buf)
	for i, want := range tokens {
		frame, err := dec.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if frame.Token != want {
			t.Errorf("frame %d token = %q, want %q", i, frame.Token, want)
		}
		if frame.ObservedAt != 1700000000000 {
			t.Errorf("frame %d ObservedAt = %d", i, frame.ObservedAt)
		}
	}
	if _, err := dec.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFrameDecoder_Partial(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameEncoder(&buf).WriteToken("abc"); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-2]

	_, err := NewFrameDecoder(bytes.NewReader(truncated)).ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Fatalf("expected partial FrameError, got %v", err)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial frame should be fatal")
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFramePayload+1)

	_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("expected too-large FrameError, got %v", err)
	}
}

func encodeRaw(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestRecordingSource_SkipsUndecodableFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	_ = enc.WriteToken("first")
	buf.Write(encodeRaw(t, map[string]any{"type": "marker", "token": "ignored"}))
	buf.Write(encodeRaw(t, "not a map"))
	_ = enc.WriteToken("second")

	src := NewRecordingSource(&buf)
	got := drain(t, src)
	if strings.Join(got, ",") != "first,second" {
		t.Errorf("got %q, want [first second]", got)
	}
	if src.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", src.Skipped())
	}
}

type fakeDevice struct {
	starts, stops int
	startErr      error
}

func (d *fakeDevice) Start(context.Context) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	return nil
}

func (d *fakeDevice) Stop() error {
	d.stops++
	return nil
}

func TestSwitch_NoRedundantCalls(t *testing.T) {
	dev := &fakeDevice{}
	sw := NewSwitch(dev)
	ctx := t.Context()

	steps := []struct {
		enabled bool
		changed bool
	}{
		{false, false},
		{true, true},
		{true, false},
		{false, true},
		{false, false},
		{true, true},
	}
	for i, step := range steps {
		changed, err := sw.Set(ctx, step.enabled)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != step.changed {
			t.Errorf("step %d: changed = %v, want %v", i, changed, step.changed)
		}
		if sw.Enabled() != step.enabled {
			t.Errorf("step %d: Enabled() = %v", i, sw.Enabled())
		}
	}
	if dev.starts != 2 || dev.stops != 1 {
		t.Errorf("starts=%d stops=%d, want 2/1", dev.starts, dev.stops)
	}
}

func TestSwitch_StartFailureKeepsState(t *testing.T) {
	dev := &fakeDevice{startErr: errors.New("no camera")}
	sw := NewSwitch(dev)

	if _, err := sw.Set(t.Context(), true); err == nil {
		t.Fatal("expected start error")
	}
	if sw.Enabled() {
		t.Error("switch should remain off after failed start")
	}
}

func TestGate_Filter(t *testing.T) {
	closed := NewGate()
	ch := make(chan string, 1)
	ch <- "while-closed"
	close(ch)
	if got := drain(t, closed.Filter(NewChannelSource(ch))); len(got) != 0 {
		t.Errorf("closed gate passed tokens: %q", got)
	}

	open := NewGate()
	_ = open.Start(t.Context())
	ch2 := make(chan string, 1)
	ch2 <- "while-open"
	close(ch2)
	if got := drain(t, open.Filter(NewChannelSource(ch2))); strings.Join(got, ",") != "while-open" {
		t.Errorf("open gate got %q", got)
	}

	_ = open.Stop()
	if open.Open() {
		t.Error("gate should be closed after Stop")
	}
}

func TestProcessDevice(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dev, err := NewProcessDevice(ProcessConfig{
		Path:       sh,
		Args:       []string{"-c", "printf 'QR-Code:tok-a\\nQR-Code:tok-b\\n'; exec sleep 5"},
		TrimPrefix: "QR-Code:",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := dev.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !dev.Running() {
		t.Error("device should be running after Start")
	}

	src := dev.Source()
	for _, want := range []string{"tok-a", "tok-b"} {
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		got, err := src.Next(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("token = %q, want %q", got, want)
		}
	}

	if err := dev.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if dev.Running() {
		t.Error("device should not be running after Stop")
	}
	if err := dev.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func shellDevice(t *testing.T, script string) *ProcessDevice {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dev, err := NewProcessDevice(ProcessConfig{
		Path:      sh,
		Args:      []string{"-c", script},
		StopGrace: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func TestProcessDevice_StopKillsWrappedDecoder(t *testing.T) {
	// sh forks sleep as a grandchild that inherits stdout.
	dev := shellDevice(t, "sleep 30; echo late")
	if err := dev.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	if err := dev.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop took %v", elapsed)
	}
	if dev.Running() {
		t.Error("device should not be running after Stop")
	}
}

func TestProcessDevice_ReportsExit(t *testing.T) {
	dev := shellDevice(t, "echo one")
	src := dev.Source()

	for run := range 2 {
		if err := dev.Start(t.Context()); err != nil {
			t.Fatalf("run %d: Start failed: %v", run, err)
		}

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		got, err := src.Next(ctx)
		if err != nil || got != "one" {
			t.Fatalf("run %d: Next = %q, %v", run, got, err)
		}
		_, err = src.Next(ctx)
		cancel()
		if !errors.Is(err, ErrDecoderExited) {
			t.Fatalf("run %d: Next after exit = %v, want ErrDecoderExited", run, err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for dev.Running() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if dev.Running() {
			t.Fatalf("run %d: device still running after decoder exit", run)
		}
	}

	if err := dev.Stop(); err != nil {
		t.Errorf("Stop after exit should be a no-op, got %v", err)
	}
}

func TestProcessDevice_StopDropsPendingTokens(t *testing.T) {
	dev := shellDevice(t, "echo stale-a; echo stale-b; exec sleep 30")
	src := dev.Source()
	if err := dev.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	if got, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next after Stop = %q, %v; want no token", got, err)
	}
}

func TestParseCommand(t *testing.T) {
	cfg, err := ParseCommand("zbarcam --raw  --nodisplay /dev/video0")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "zbarcam" || strings.Join(cfg.Args, " ") != "--raw --nodisplay /dev/video0" {
		t.Errorf("ParseCommand = %+v", cfg)
	}
	if _, err := ParseCommand("   "); err == nil {
		t.Error("expected error for blank command")
	}
}
