package app

import (
	"context"
	"errors"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/capture"
	"github.com/ayusman/signalwatch/internal/render"
)

// runLoop reads frames at the configured rate and processes them until
// stopCh closes or a non-looping source runs out.
func (a *App) runLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if errors.Is(err, capture.ErrEndOfStream) {
				log.Println("Camera source ended")
				a.detach(stopCh)
				return
			}
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			a.processCaptured(frame)
			frame.Close()
		}
	}
}

// processCaptured runs one captured frame and refreshes the overlay.
func (a *App) processCaptured(frame *gocv.Mat) {
	res, err := a.ProcessFrame(context.Background(), frame)
	if err != nil {
		log.Printf("Error processing frame: %v", err)
		return
	}

	if !a.config.Overlay {
		return
	}
	render.Tracks(frame, res.Tracks)
	jpeg, err := render.EncodeJPEG(frame)
	if err != nil {
		log.Printf("Error encoding overlay: %v", err)
		return
	}
	a.setLastJPEG(jpeg)
}

// detach marks the loop stopped from inside the loop itself.
func (a *App) detach(stopCh <-chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh == stopCh {
		a.stopCh, a.doneCh = nil, nil
		if err := a.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}
}
