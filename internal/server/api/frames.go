package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/render"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// maxUpload bounds frame uploads.
const maxUpload = 16 << 20

// FrameHandler accepts frames at POST /api/frame, either as JSON detections
// or as an image upload in the multipart field "frame".
type FrameHandler struct {
	proc Processor
}

// NewFrameHandler creates a new FrameHandler.
func NewFrameHandler(proc Processor) *FrameHandler {
	return &FrameHandler{proc: proc}
}

type frameRequest struct {
	Detections []tracker.Detection `json:"detections"`
}

// ServeHTTP implements the http.Handler interface.
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "":
		h.detections(w, r)
	case "multipart/form-data":
		h.image(w, r)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported content type")
	}
}

// detections handles a JSON body of pre-computed detections.
func (h *FrameHandler) detections(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpload)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	for i, d := range req.Detections {
		if err := tracker.Validate(d); err != nil {
			var verr *tracker.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error": err.Error(),
					"index": i,
					"field": verr.Field,
				})
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res := h.proc.ProcessDetections(r.Context(), req.Detections)
	writeJSON(w, http.StatusOK, res)
}

// image handles an uploaded JPEG or PNG frame.
func (h *FrameHandler) image(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no frame field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read frame")
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		img.Close()
		writeError(w, http.StatusBadRequest, "could not decode image")
		return
	}
	defer img.Close()

	res, err := h.proc.ProcessFrame(r.Context(), &img)
	if err != nil {
		log.Printf("Frame processing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to process frame")
		return
	}

	if r.URL.Query().Get("overlay") != "1" {
		writeJSON(w, http.StatusOK, res)
		return
	}

	render.Tracks(&img, res.Tracks)
	jpeg, err := render.EncodeJPEG(&img)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode overlay")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(jpeg)
}
