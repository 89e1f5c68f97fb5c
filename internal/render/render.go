// Package render draws track overlays onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/tracker"
)

var (
	colorRed   = color.RGBA{R: 255, A: 255}
	colorGreen = color.RGBA{G: 255, A: 255}
	colorAmber = color.RGBA{R: 255, G: 191, A: 255}
)

const (
	thickness = 2
	labelLift = 6
	fontScale = 0.5
)

// Color returns the overlay color for a state label.
func Color(label string) color.RGBA {
	switch {
	case strings.EqualFold(label, "red"):
		return colorRed
	case strings.EqualFold(label, "green"):
		return colorGreen
	default:
		return colorAmber
	}
}

// Caption returns the text drawn above a track box.
func Caption(t tracker.Track) string {
	return fmt.Sprintf("ID:%d %s", t.ID, t.Label)
}

// Tracks draws a box and caption for every track onto img in place.
func Tracks(img *gocv.Mat, tracks []tracker.Track) {
	if img == nil || img.Empty() {
		return
	}
	for _, t := range tracks {
		rect := image.Rect(int(t.BBox.X1), int(t.BBox.Y1), int(t.BBox.X2), int(t.BBox.Y2))
		c := Color(t.Label)
		gocv.Rectangle(img, rect, c, thickness)
		gocv.PutText(img, Caption(t), image.Pt(rect.Min.X, rect.Min.Y-labelLift),
			gocv.FontHersheySimplex, fontScale, c, thickness)
	}
}

// EncodeJPEG encodes img as a JPEG.
func EncodeJPEG(img *gocv.Mat) ([]byte, error) {
	if img == nil || img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
