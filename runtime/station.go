// Package runtime hosts a receiver and connects it to its collaborators.
//
// A Station owns one receiver.Controller and drives the capture device,
// the file sink, the completion adapter, metrics and logging around it.
// Like the controller, a Station is driven from a single goroutine: tokens,
// control actions and saves are applied one at a time.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/lifi/adapter"
	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/log"
	"github.com/pithecene-io/lifi/metrics"
	"github.com/pithecene-io/lifi/packet"
	"github.com/pithecene-io/lifi/receiver"
	"github.com/pithecene-io/lifi/sink"
)

// DefaultReceiverID names a station when none is configured.
const DefaultReceiverID = "lifi"

// ErrNothingToSave is returned by Save while the session is not complete.
var ErrNothingToSave = errors.New("nothing to save yet")

// ErrNoSink is returned by Save when the station has no sink.
var ErrNoSink = errors.New("no sink configured")

// Config wires a Station to its collaborators. Only ReceiverID has meaning
// on its own; every other field may be nil.
type Config struct {
	ReceiverID string
	// Device is switched on and off by SetScanning. Nil uses a capture.Gate.
	Device capture.Device
	Sink   sink.Sink
	// Adapter, when set, is told about every successful save.
	Adapter adapter.Adapter
	Metrics *metrics.Collector
	Logger  *log.Logger
	// AutoSave saves once, as soon as a session completes.
	AutoSave bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// SavedFile describes one file handed to the sink.
type SavedFile struct {
	Filename    string    `json:"filename" yaml:"filename"`
	Location    string    `json:"location" yaml:"location"`
	TotalChunks int       `json:"total_chunks" yaml:"total_chunks"`
	Bytes       int64     `json:"bytes" yaml:"bytes"`
	SavedAt     time.Time `json:"saved_at" yaml:"saved_at"`
}

// Station runs one receiver.
type Station struct {
	config Config
	ctrl   *receiver.Controller
	sw     *capture.Switch
	base   *log.Logger
	logger *log.Logger

	saved       []SavedFile
	lastSaveErr error
}

// NewStation creates a Station with its device stopped.
func NewStation(cfg Config) *Station {
	if cfg.ReceiverID == "" {
		cfg.ReceiverID = DefaultReceiverID
	}
	if cfg.Device == nil {
		cfg.Device = capture.NewGate()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Station{
		config: cfg,
		ctrl:   receiver.NewController(),
		sw:     capture.NewSwitch(cfg.Device),
		base:   cfg.Logger,
		logger: cfg.Logger,
	}
}

// ReceiverID returns the configured receiver identity.
func (s *Station) ReceiverID() string {
	return s.config.ReceiverID
}

// Controller exposes the underlying state machine for inspection.
func (s *Station) Controller() *receiver.Controller {
	return s.ctrl
}

// Device returns the device the station switches.
func (s *Station) Device() capture.Device {
	return s.config.Device
}

// Observe feeds one token through the receiver.
// Every outcome is recorded in metrics; anything other than a fresh chunk is
// logged as a diagnostic. With AutoSave, the token that completes a session
// also triggers Save.
func (s *Station) Observe(ctx context.Context, token string) receiver.Result {
	s.config.Metrics.IncTokenObserved()
	res := s.ctrl.Handle(token)

	switch res.Outcome {
	case receiver.OutcomeDuplicate:
		s.config.Metrics.IncDuplicate()

	case receiver.OutcomeRejected:
		kind := "unknown"
		if k, ok := packet.KindOf(res.Err); ok {
			kind = k.String()
		}
		s.config.Metrics.IncRejected(kind)
		s.logger.Debug("token rejected", map[string]any{
			"kind":  kind,
			"error": res.Err.Error(),
		})

	case receiver.OutcomeMismatch:
		s.config.Metrics.IncSessionMismatch()
		s.logger.Warn("packet for another file ignored", map[string]any{
			"packet_filename":     res.Packet.Filename,
			"packet_total_chunks": res.Packet.TotalChunks,
		})

	case receiver.OutcomeAlreadyPresent:
		s.config.Metrics.IncChunkRedundant()
		s.logger.Debug("chunk already present", map[string]any{
			"index": res.Packet.Index,
		})

	case receiver.OutcomeApplied:
		s.config.Metrics.IncChunkApplied()
		if res.SessionStarted {
			s.config.Metrics.IncSessionStarted()
			s.logger = s.base.WithFilename(res.Packet.Filename)
			s.logger.Info("session started", map[string]any{
				"total_chunks": res.Packet.TotalChunks,
			})
		}
		if res.Completed {
			p := s.ctrl.Progress()
			s.config.Metrics.IncSessionComplete()
			s.logger.Info("transfer complete", map[string]any{
				"total_chunks": p.TotalChunks,
				"bytes":        p.Bytes,
			})
			if s.config.AutoSave {
				// Save records and logs its own failures.
				_, _ = s.Save(ctx)
			}
		}
	}
	return res
}

// SetScanning starts or stops the capture device. Requests that match the
// current state are not forwarded.
func (s *Station) SetScanning(ctx context.Context, on bool) error {
	changed, err := s.sw.Set(ctx, on)
	if err != nil {
		action := "stop"
		if on {
			action = "start"
		}
		s.logger.Error("capture device "+action+" failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to %s capture device: %w", action, err)
	}
	if changed {
		s.logger.Debug("capture device switched", map[string]any{"scanning": on})
	}
	return nil
}

// Toggle flips the scanning state.
func (s *Station) Toggle(ctx context.Context) error {
	return s.SetScanning(ctx, !s.sw.Enabled())
}

// Scanning reports whether the capture device is running.
func (s *Station) Scanning() bool {
	return s.sw.Enabled()
}

// Reset stops the device and discards the session and deduplication state.
// The receiver is always reset, even when stopping the device fails.
func (s *Station) Reset() error {
	stopErr := s.SetScanning(context.Background(), false)
	s.ctrl.Reset()
	s.lastSaveErr = nil
	s.config.Metrics.IncReset()
	s.logger.Info("receiver reset", nil)
	s.logger = s.base
	return stopErr
}

// Save assembles the completed file and hands it to the sink, then publishes
// a completion event. While the session is incomplete it does nothing and
// returns ErrNothingToSave. A publish failure is logged but does not fail
// the save.
func (s *Station) Save(ctx context.Context) (SavedFile, error) {
	data, err := s.ctrl.Assemble()
	if err != nil {
		s.logger.Info("nothing to save yet", map[string]any{
			"received":     s.ctrl.Progress().Received,
			"total_chunks": s.ctrl.Progress().TotalChunks,
		})
		return SavedFile{}, ErrNothingToSave
	}
	if s.config.Sink == nil {
		s.lastSaveErr = ErrNoSink
		return SavedFile{}, ErrNoSink
	}

	session := s.ctrl.Session()
	location, err := s.config.Sink.Save(ctx, session.Filename(), data)
	if err != nil {
		s.config.Metrics.IncSaveFailed()
		s.lastSaveErr = err
		s.logger.Error("save failed", map[string]any{"error": err.Error()})
		return SavedFile{}, fmt.Errorf("failed to save %q: %w", session.Filename(), err)
	}

	saved := SavedFile{
		Filename:    session.Filename(),
		Location:    location,
		TotalChunks: session.TotalChunks(),
		Bytes:       int64(len(data)),
		SavedAt:     s.config.Now(),
	}
	s.saved = append(s.saved, saved)
	s.lastSaveErr = nil
	s.config.Metrics.IncSaveSucceeded()
	s.logger.Info("file saved", map[string]any{
		"location": location,
		"bytes":    saved.Bytes,
	})

	s.publish(ctx, saved)
	return saved, nil
}

func (s *Station) publish(ctx context.Context, saved SavedFile) {
	if s.config.Adapter == nil {
		return
	}
	event := adapter.NewTransferCompletedEvent(
		s.config.ReceiverID, saved.Filename, saved.TotalChunks, saved.Bytes, saved.Location, saved.SavedAt)
	if err := s.config.Adapter.Publish(ctx, event); err != nil {
		s.config.Metrics.IncPublishFailure()
		s.logger.Warn("completion event not published", map[string]any{"error": err.Error()})
	}
}

// Saved returns every file saved since the station was created.
func (s *Station) Saved() []SavedFile {
	out := make([]SavedFile, len(s.saved))
	copy(out, s.saved)
	return out
}

// LastSaveError returns the error of the most recent failed save, cleared by
// a later successful save or a reset.
func (s *Station) LastSaveError() error {
	return s.lastSaveErr
}

// Status returns the current render payload.
func (s *Station) Status() Status {
	return NewStatus(s.ctrl.Progress(), s.sw.Enabled())
}

// Run feeds tokens from src until it is exhausted or ctx ends.
// End of stream is not an error; cancellation returns ctx.Err().
func (s *Station) Run(ctx context.Context, src capture.Source) (Status, error) {
	for {
		token, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return s.Status(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s.Status(), ctxErr
			}
			return s.Status(), fmt.Errorf("capture source failed: %w", err)
		}
		s.Observe(ctx, token)
	}
}
