package detector

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/tracker"
)

// YOLODetector runs a YOLOv5-style ONNX model through the OpenCV DNN module.
type YOLODetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
}

// candidate is a decoded output row that passed the confidence filter.
type candidate struct {
	box   tracker.BBox
	score float32
	class int
}

// NewYOLODetector loads the model at config.ModelPath.
func NewYOLODetector(config Config) (*YOLODetector, error) {
	if config.ModelPath == "" {
		return nil, ErrModelNotConfigured
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model %s: %w", config.ModelPath, err)
	}
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", config.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &YOLODetector{config: config, net: net}, nil
}

// Detect runs inference on a single BGR frame.
func (d *YOLODetector) Detect(frame *gocv.Mat) ([]tracker.Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := d.config.InputSize
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	// Output is [1, rows, 5+classes]: cx, cy, w, h, objectness, class scores.
	dims := out.Size()
	if len(dims) != 3 || dims[2] < 6 {
		return nil, fmt.Errorf("unexpected model output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	xScale := float64(frame.Cols()) / float64(size)
	yScale := float64(frame.Rows()) / float64(size)
	candidates := decodeRows(data, dims[1], dims[2], xScale, yScale, float32(d.config.MinConfidence))
	if len(candidates) == 0 {
		return []tracker.Detection{}, nil
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = image.Rect(int(c.box.X1), int(c.box.Y1), int(c.box.X2), int(c.box.Y2))
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(rects, scores, float32(d.config.MinConfidence), float32(d.config.NMSThreshold))

	detections := make([]tracker.Detection, 0, len(keep))
	for _, i := range keep {
		c := candidates[i]
		detections = append(detections, tracker.Detection{
			BBox:  c.box,
			Label: d.label(c.class),
			Score: float64(c.score),
		})
	}
	return detections, nil
}

// label maps a class index to its configured name, falling back to the index.
func (d *YOLODetector) label(class int) string {
	if class >= 0 && class < len(d.config.Labels) {
		return d.config.Labels[class]
	}
	return strconv.Itoa(class)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodeRows converts raw YOLO output rows into frame-space candidates whose
// combined score reaches minConf.
func decodeRows(data []float32, rows, cols int, xScale, yScale float64, minConf float32) []candidate {
	var out []candidate
	for i := 0; i < rows && (i+1)*cols <= len(data); i++ {
		row := data[i*cols : (i+1)*cols]
		objectness := row[4]
		if objectness < minConf {
			continue
		}

		class, classScore := 0, row[5]
		for j, s := range row[6:] {
			if s > classScore {
				class, classScore = j+1, s
			}
		}
		score := objectness * classScore
		if score < minConf {
			continue
		}

		cx, cy := float64(row[0]), float64(row[1])
		w, h := float64(row[2]), float64(row[3])
		out = append(out, candidate{
			box: tracker.BBox{
				X1: (cx - w/2) * xScale,
				Y1: (cy - h/2) * yScale,
				X2: (cx + w/2) * xScale,
				Y2: (cy + h/2) * yScale,
			},
			score: score,
			class: class,
		})
	}
	return out
}
