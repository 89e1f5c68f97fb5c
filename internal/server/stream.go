package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval paces the MJPEG stream.
const streamInterval = 100 * time.Millisecond

// FrameSource supplies the latest overlay frame as JPEG.
type FrameSource interface {
	LastJPEG() ([]byte, bool)
}

// StreamHandler serves the overlay frames as MJPEG.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a new StreamHandler over source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames until the client goes away. A frame is
// only written when it differs from the previous one.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last []byte
	for {
		if jpeg, ok := h.source.LastJPEG(); ok && !sameFrame(jpeg, last) {
			if err := writePart(w, jpeg); err != nil {
				return
			}
			last = jpeg
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// sameFrame compares by identity; the source publishes a new slice per frame.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
