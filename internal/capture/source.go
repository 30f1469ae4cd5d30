// Package capture owns the per-camera GStreamer pipeline: launching it,
// watching its bus for errors, restarting it with exponential backoff, and
// handing encoded H.264 access units to subscribers via internal/fanout.
package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"camerafeed/internal/domain"
	"camerafeed/internal/fanout"
	"camerafeed/internal/logging"
)

var log = logging.Component("capture")

const busPollTimeout = 500 * time.Millisecond

// Source is a per-camera capture pipeline with autonomous fault recovery.
// It implements domain.FrameSource.
type Source struct {
	desc domain.CameraDescriptor

	registry *fanout.Registry

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce *sync.Once
	doneCh   chan struct{}

	frameCount   uint64
	restartCount uint32
	lastFrameAt  int64 // unix nanoseconds; 0 before the first frame
}

// New creates an idle Source for desc. Call Start to launch its pipeline.
func New(desc domain.CameraDescriptor) *Source {
	return &Source{
		desc:     desc,
		registry: fanout.New(),
	}
}

// ID returns the camera's stable identifier.
func (s *Source) ID() string { return s.desc.ID }

// Descriptor returns the camera configuration this source was built from.
func (s *Source) Descriptor() domain.CameraDescriptor { return s.desc }

// Subscribe registers cb to receive every frame this source emits.
func (s *Source) Subscribe(cb domain.FrameSubscriber) uint64 {
	return s.registry.Subscribe(cb)
}

// Unsubscribe removes a previously registered subscription.
func (s *Source) Unsubscribe(id uint64) {
	s.registry.Unsubscribe(id)
}

// UnsubscribeAll removes every registered subscriber.
func (s *Source) UnsubscribeAll() {
	s.registry.UnsubscribeAll()
}

// Start launches the capture pipeline and its monitor goroutine. Idempotent:
// calling Start on an already-running source is a no-op that returns true.
func (s *Source) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return true
	}

	elements, err := buildPipeline(s.desc)
	if err != nil {
		log.Errorf("%s: initial pipeline build failed: %v", s.desc.ID, err)
		return false
	}
	if err := elements.pipeline.SetState(gst.StatePlaying); err != nil {
		log.Errorf("%s: initial PLAYING transition failed: %v", s.desc.ID, err)
		return false
	}

	s.stopCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.doneCh = make(chan struct{})
	s.running = true
	atomic.StoreUint32(&s.restartCount, 0)

	wireAppSink(elements.appsink, s)

	go s.monitor(elements)

	log.Infof("%s: capture started", s.desc.ID)
	return true
}

// Stop latches shutdown and waits (bounded) for the monitor goroutine to
// exit. Safe to call multiple times and safe if Start was never called.
func (s *Source) Stop() {
	s.mu.Lock()
	running := s.running
	stopCh := s.stopCh
	stopOnce := s.stopOnce
	doneCh := s.doneCh
	s.mu.Unlock()

	if !running {
		return
	}

	stopOnce.Do(func() {
		close(stopCh)
	})

	select {
	case <-doneCh:
	case <-time.After(3 * time.Second):
		log.Warnf("%s: monitor did not exit within 3s of stop", s.desc.ID)
	}
}

// Stats reports the counters for this source. FrameCount is a lifetime
// total; RestartCount counts restarts since the most recent Start.
type Stats struct {
	FrameCount   uint64
	RestartCount uint32
	Running      bool
}

func (s *Source) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return Stats{
		FrameCount:   atomic.LoadUint64(&s.frameCount),
		RestartCount: atomic.LoadUint32(&s.restartCount),
		Running:      running,
	}
}

// monitor owns the Launching/Running/Restarting state machine for one
// pipeline instance, and re-launches on failure with unbounded exponential
// backoff until Stop is called.
func (s *Source) monitor(elements *pipelineElements) {
	defer close(s.doneCh)

	backoff := time.Duration(0)

	for {
		err := s.watchBus(elements)
		teardownPipeline(elements)

		if err == nil {
			// bus watch returned nil only on shutdown
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			log.Infof("%s: capture stopped", s.desc.ID)
			return
		}

		log.Warnf("%s: pipeline failed, restarting: %v", s.desc.ID, err)
		atomic.AddUint32(&s.restartCount, 1)

		next, ok := s.relaunch(&backoff)
		if !ok {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			log.Infof("%s: capture stopped during backoff", s.desc.ID)
			return
		}

		backoff = 0
		elements = next
	}
}

// relaunch retries build-then-PLAYING with advancing backoff until one
// attempt succeeds or the stop signal arrives (reported as ok=false). A
// build or PLAYING-transition failure loops back here directly rather than
// through watchBus: watchBus polls a live pipeline's bus, and the
// pipelineElements from a failed attempt is either nil or already torn
// down, so routing a failed attempt back through watchBus would just poll
// a dead bus forever and never retry.
func (s *Source) relaunch(backoff *time.Duration) (*pipelineElements, bool) {
	for {
		*backoff = nextBackoff(*backoff)
		if !sleepBackoff(*backoff, s.stopCh) {
			return nil, false
		}

		next, buildErr := buildPipeline(s.desc)
		if buildErr != nil {
			log.Errorf("%s: rebuild failed, will retry: %v", s.desc.ID, buildErr)
			continue
		}
		if playErr := next.pipeline.SetState(gst.StatePlaying); playErr != nil {
			log.Errorf("%s: PLAYING transition failed, will retry: %v", s.desc.ID, playErr)
			teardownPipeline(next)
			continue
		}

		wireAppSink(next.appsink, s)
		return next, true
	}
}

// watchBus polls the pipeline bus until it sees ERROR/EOS (returns that as
// an error), or the stop channel closes (returns nil).
func (s *Source) watchBus(elements *pipelineElements) error {
	bus := elements.pipeline.GetPipelineBus()

	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		msg := bus.TimedPop(busPollTimeout)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			return errEndOfStream

		case gst.MessageError:
			gerr := msg.ParseError()
			category := classifyError(gerr.Error())
			log.Errorf("%s: pipeline error [%s]: %s", s.desc.ID, category, gerr.Error())
			return gerr

		case gst.MessageStateChanged:
			if msg.Source() == elements.pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					log.Debugf("%s: pipeline playing", s.desc.ID)
				}
			}
		}
	}
}

var errEndOfStream = endOfStreamError{}

type endOfStreamError struct{}

func (endOfStreamError) Error() string { return "end of stream" }

func wireAppSink(sink *app.Sink, s *Source) {
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})
}

// onNewSample is the appsink callback: pull the sample, extract the access
// unit and its keyframe flag, stamp it, and fan it out to subscribers.
func (s *Source) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowEOS
	}
	defer sample.Unref()

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	if len(data) == 0 {
		return gst.FlowOK
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	frame := &domain.EncodedFrame{
		Payload:    payload,
		PTS:        int64(buffer.GetPresentationTimestamp()),
		IsKeyframe: !buffer.HasFlags(gst.BufferFlagDeltaUnit),
		TraceID:    newTraceID(),
	}

	atomic.AddUint64(&s.frameCount, 1)
	atomic.StoreInt64(&s.lastFrameAt, time.Now().UnixNano())
	s.registry.Publish(frame)

	return gst.FlowOK
}

// SecondsSinceLastFrame reports how long it has been since this source last
// emitted a frame, or -1 if it has never emitted one.
func (s *Source) SecondsSinceLastFrame() float64 {
	last := atomic.LoadInt64(&s.lastFrameAt)
	if last == 0 {
		return -1
	}
	return time.Since(time.Unix(0, last)).Seconds()
}

func newTraceID() string {
	return uuid.New().String()
}
