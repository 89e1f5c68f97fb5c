package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/store"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// fakeProcessor runs a real pipeline and records what it was given.
type fakeProcessor struct {
	pipeline   *pipeline.Pipeline
	frameDets  []tracker.Detection
	frameErr   error
	frames     int
	last       pipeline.FrameResult
	haveResult bool
	mu         sync.Mutex
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		pipeline: pipeline.New(
			tracker.New(tracker.Config{MaxDistance: 80, MaxAge: 8}),
			decision.New(decision.Config{Window: 5, RedThreshold: 0.6}),
			pipeline.Options{},
		),
	}
}

func (f *fakeProcessor) ProcessDetections(ctx context.Context, dets []tracker.Detection) pipeline.FrameResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = f.pipeline.Process(dets)
	f.haveResult = true
	return f.last
}

func (f *fakeProcessor) ProcessFrame(ctx context.Context, frame *gocv.Mat) (pipeline.FrameResult, error) {
	f.mu.Lock()
	f.frames++
	err := f.frameErr
	dets := f.frameDets
	f.mu.Unlock()
	if err != nil {
		return pipeline.FrameResult{}, err
	}
	return f.ProcessDetections(ctx, dets), nil
}

func (f *fakeProcessor) LastResult() (pipeline.FrameResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.haveResult
}

func (f *fakeProcessor) Tracks() []tracker.Track {
	return f.pipeline.Tracker().Tracks()
}

func redBox(x float64) tracker.Detection {
	return tracker.Detection{BBox: tracker.BBox{X1: x, Y1: 10, X2: x + 20, Y2: 60}, Label: "red", Score: 0.9}
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/frame", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "frame.png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		fw.Write(data)
	} else {
		mw.WriteField("other", "value")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func encodedFrame(t *testing.T) []byte {
	t.Helper()
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()
	buf, err := gocv.IMEncode(".png", img)
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}

func TestFrameHandler_Detections(t *testing.T) {
	proc := newFakeProcessor()
	h := NewFrameHandler(proc)

	rec := postJSON(t, h, `{"detections":[{"bbox":[10,10,30,60],"label":"red","score":0.9}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var res pipeline.FrameResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Decision.Advisory != decision.AdvisoryStop {
		t.Errorf("expected advisory STOP, got %s", res.Decision.Advisory)
	}
	if res.Decision.TotalTracks != 1 {
		t.Errorf("expected 1 track, got %d", res.Decision.TotalTracks)
	}
}

func TestFrameHandler_EmptyDetections(t *testing.T) {
	h := NewFrameHandler(newFakeProcessor())

	rec := postJSON(t, h, `{"detections":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"NO_DETECTIONS"`) {
		t.Errorf("expected NO_DETECTIONS, got %s", rec.Body.String())
	}
}

func TestFrameHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "invalid json", body: `{"detections":`},
		{name: "wrong bbox arity", body: `{"detections":[{"bbox":[1,2,3],"label":"red","score":0.5}]}`},
		{name: "inverted box", body: `{"detections":[{"bbox":[30,10,10,60],"label":"red","score":0.5}]}`, wantField: "bbox.x2"},
		{name: "score out of range", body: `{"detections":[{"bbox":[1,2,3,4],"label":"red","score":1.5}]}`, wantField: "score"},
		{name: "empty label", body: `{"detections":[{"bbox":[1,2,3,4],"label":"","score":0.5}]}`, wantField: "label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := newFakeProcessor()
			rec := postJSON(t, NewFrameHandler(proc), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Error("expected error message")
			}
			if tt.wantField != "" && body["field"] != tt.wantField {
				t.Errorf("expected field %q, got %v", tt.wantField, body["field"])
			}
			if _, ok := proc.LastResult(); ok {
				t.Error("rejected frame must not reach the pipeline")
			}
		})
	}
}

func TestFrameHandler_Methods(t *testing.T) {
	h := NewFrameHandler(newFakeProcessor())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/frame", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/frame", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected status %d, got %d", http.StatusUnsupportedMediaType, rec.Code)
	}
}

func TestFrameHandler_Image(t *testing.T) {
	frame := encodedFrame(t)

	t.Run("runs detector and returns decision", func(t *testing.T) {
		proc := newFakeProcessor()
		proc.frameDets = []tracker.Detection{redBox(40)}

		body, ct := multipartBody(t, "frame", frame)
		req := httptest.NewRequest(http.MethodPost, "/api/frame", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		NewFrameHandler(proc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if proc.frames != 1 {
			t.Errorf("expected 1 frame processed, got %d", proc.frames)
		}
		if !strings.Contains(rec.Body.String(), `"STOP"`) {
			t.Errorf("expected STOP advisory, got %s", rec.Body.String())
		}
	})

	t.Run("overlay returns jpeg", func(t *testing.T) {
		proc := newFakeProcessor()
		proc.frameDets = []tracker.Detection{redBox(40)}

		body, ct := multipartBody(t, "frame", frame)
		req := httptest.NewRequest(http.MethodPost, "/api/frame?overlay=1", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		NewFrameHandler(proc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected Content-Type image/jpeg, got %s", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFF, 0xD8}) {
			t.Error("expected JPEG body")
		}
	})

	t.Run("missing field", func(t *testing.T) {
		body, ct := multipartBody(t, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/frame", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		NewFrameHandler(newFakeProcessor()).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "no frame field") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("undecodable image", func(t *testing.T) {
		body, ct := multipartBody(t, "frame", []byte("definitely not a jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/api/frame", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		NewFrameHandler(newFakeProcessor()).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "could not decode image") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("detector failure", func(t *testing.T) {
		proc := newFakeProcessor()
		proc.frameErr = errors.New("inference failed")

		body, ct := multipartBody(t, "frame", frame)
		req := httptest.NewRequest(http.MethodPost, "/api/frame", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		NewFrameHandler(proc).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
	})
}

func TestStatusHandler(t *testing.T) {
	proc := newFakeProcessor()
	h := NewStatusHandler(proc)

	t.Run("no data before first frame", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		want := `{"time":null,"advisory":"NO_DATA"}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("expected body %s, got %s", want, got)
		}
	})

	t.Run("last result after frame", func(t *testing.T) {
		proc.ProcessDetections(context.Background(), []tracker.Detection{redBox(0)})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		var res pipeline.FrameResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if res.Decision.Advisory != decision.AdvisoryStop {
			t.Errorf("expected STOP, got %s", res.Decision.Advisory)
		}
		if time.Since(res.Time) > time.Minute {
			t.Errorf("unexpected timestamp %v", res.Time)
		}
	})

	t.Run("only allows GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestTracksHandler(t *testing.T) {
	proc := newFakeProcessor()
	h := NewTracksHandler(proc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
	if got := strings.TrimSpace(rec.Body.String()); got != `{"tracks":[]}` {
		t.Errorf("expected empty track list, got %s", got)
	}

	proc.ProcessDetections(context.Background(), []tracker.Detection{redBox(0), redBox(300)})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))

	var body tracksResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Tracks) != 2 || body.Tracks[0].ID != 1 || body.Tracks[1].ID != 2 {
		t.Errorf("unexpected tracks %+v", body.Tracks)
	}
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

func TestDecisionsHandler(t *testing.T) {
	s := newTestStore(t)
	for _, adv := range []decision.Advisory{decision.AdvisoryGo, decision.AdvisoryStop, decision.AdvisoryStop} {
		rec := store.NewDecisionRecord(decision.Result{Advisory: adv}, 0, time.Now())
		if err := s.Decisions().Record(rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	h := NewDecisionsHandler(s)

	t.Run("lists with counts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/decisions?limit=2", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var body decisionsResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(body.Decisions) != 2 {
			t.Errorf("expected 2 decisions, got %d", len(body.Decisions))
		}
		if body.Counts[decision.AdvisoryStop] != 2 || body.Counts[decision.AdvisoryGo] != 1 {
			t.Errorf("unexpected counts %v", body.Counts)
		}
		if body.Summary == nil || body.Summary.Count != 3 {
			t.Errorf("unexpected summary %+v", body.Summary)
		}
	})

	t.Run("default limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/decisions", nil))
		var body decisionsResponse
		json.NewDecoder(rec.Body).Decode(&body)
		if len(body.Decisions) != 3 {
			t.Errorf("expected 3 decisions, got %d", len(body.Decisions))
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-4"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/decisions?limit="+q, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
			}
		}
	})
}
