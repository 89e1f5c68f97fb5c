package server

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/sink"
	"github.com/ayusman/signalwatch/internal/store"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// testProcessor is a minimal api.Processor over a real pipeline that
// publishes each result to a sink.
type testProcessor struct {
	pipeline *pipeline.Pipeline
	sink     sink.Sink
	last     *pipeline.FrameResult
	mu       sync.Mutex
}

func newTestProcessor(s sink.Sink) *testProcessor {
	return &testProcessor{
		pipeline: pipeline.New(
			tracker.New(tracker.Config{MaxDistance: 80, MaxAge: 8}),
			decision.New(decision.Config{Window: 5, RedThreshold: 0.6}),
			pipeline.Options{},
		),
		sink: s,
	}
}

func (p *testProcessor) ProcessDetections(ctx context.Context, dets []tracker.Detection) pipeline.FrameResult {
	p.mu.Lock()
	res := p.pipeline.Process(dets)
	p.last = &res
	p.mu.Unlock()

	if p.sink != nil {
		p.sink.Publish(ctx, res)
	}
	return res
}

func (p *testProcessor) ProcessFrame(ctx context.Context, frame *gocv.Mat) (pipeline.FrameResult, error) {
	return p.ProcessDetections(ctx, nil), nil
}

func (p *testProcessor) LastResult() (pipeline.FrameResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return pipeline.FrameResult{}, false
	}
	return *p.last, true
}

func (p *testProcessor) Tracks() []tracker.Track {
	return p.pipeline.Tracker().Tracks()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeFrames is a FrameSource with a settable frame.
type fakeFrames struct {
	frame []byte
	mu    sync.Mutex
}

func (f *fakeFrames) set(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
}

func (f *fakeFrames) LastJPEG() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.frame != nil
}
