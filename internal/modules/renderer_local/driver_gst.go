//go:build gstreamer

package rendererlocal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
)

// GstDriver plays through a GStreamer pipeline template.
type GstDriver struct {
	mu       sync.Mutex
	pipeline string
	device   string
	volume   float64
	muted    bool
	current  *gst.Element
	onEOS    func()
}

var gstInitOnce sync.Once

// NewDriver creates a GStreamer driver from a pipeline template. The
// template may reference {url}, {device}, {start_ms} and {volume}.
func NewDriver(pipeline string, device string) (*GstDriver, error) {
	if strings.TrimSpace(pipeline) == "" {
		return nil, errors.New("pipeline template required")
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &GstDriver{pipeline: pipeline, device: device, volume: 1.0}, nil
}

// SetEOSHandler registers the end-of-stream callback.
func (d *GstDriver) SetEOSHandler(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEOS = fn
}

// Play starts a fresh pipeline for the URL.
func (d *GstDriver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.stopCurrentLocked(); err != nil {
		return err
	}

	pipeline, err := d.buildPipelineLocked(url, positionMS)
	if err != nil {
		return err
	}
	d.watchBus(pipeline)
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return err
	}
	d.current = pipeline
	return nil
}

// Pause pauses the current pipeline.
func (d *GstDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePaused)
}

// Resume resumes a paused pipeline.
func (d *GstDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePlaying)
}

// Stop tears the current pipeline down.
func (d *GstDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopCurrentLocked()
}

// Seek seeks within the current pipeline.
func (d *GstDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return errors.New("not playing")
	}
	positionNS := positionMS * int64(time.Millisecond)
	return d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS)
}

// SetVolume sets volume (0..1).
func (d *GstDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = volume
	if d.current != nil {
		_ = d.current.SetProperty("volume", d.effectiveVolumeLocked())
	}
	return nil
}

// SetMute sets mute state.
func (d *GstDriver) SetMute(mute bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.muted = mute
	if d.current != nil {
		_ = d.current.SetProperty("volume", d.effectiveVolumeLocked())
	}
	return nil
}

// Position reports the current position and duration in
// milliseconds.
func (d *GstDriver) Position() (int64, int64, bool) {
	d.mu.Lock()
	pipeline := d.current
	d.mu.Unlock()
	if pipeline == nil {
		return 0, 0, false
	}

	position, ok := pipeline.QueryPosition(gst.FormatTime)
	if !ok {
		return 0, 0, false
	}
	duration, _ := pipeline.QueryDuration(gst.FormatTime)
	return position / int64(time.Millisecond), duration / int64(time.Millisecond), true
}

func (d *GstDriver) buildPipelineLocked(url string, positionMS int64) (*gst.Element, error) {
	pipeline := d.pipeline
	pipeline = strings.ReplaceAll(pipeline, "{url}", url)
	pipeline = strings.ReplaceAll(pipeline, "{device}", d.device)
	pipeline = strings.ReplaceAll(pipeline, "{start_ms}", fmt.Sprintf("%d", positionMS))
	pipeline = strings.ReplaceAll(pipeline, "{volume}", fmt.Sprintf("%0.2f", d.effectiveVolumeLocked()))

	return gst.ParseLaunch(pipeline)
}

func (d *GstDriver) watchBus(pipeline *gst.Element) {
	bus := pipeline.GetBus()
	if bus == nil {
		return
	}
	bus.AddWatch(func(msg *gst.Message) bool {
		if msg.Type() != gst.MessageEOS {
			return true
		}
		d.mu.Lock()
		isCurrent := d.current == pipeline
		handler := d.onEOS
		d.mu.Unlock()

		if isCurrent && handler != nil {
			handler()
		}
		return true
	})
}

func (d *GstDriver) stopCurrentLocked() error {
	if d.current == nil {
		return nil
	}
	_ = d.current.SetState(gst.StateNull)
	d.current = nil
	return nil
}

func (d *GstDriver) effectiveVolumeLocked() float64 {
	if d.muted {
		return 0
	}
	return d.volume
}
