//go:build !gstreamer

package rendererlocal

import "errors"

var errNoGst = errors.New("gstreamer build tag not enabled")

// GstDriver is a stub when the gstreamer tag is not enabled.
type GstDriver struct{}

// NewDriver returns an error when the gstreamer build tag is missing.
func NewDriver(pipeline string, device string) (*GstDriver, error) {
	return nil, errNoGst
}

func (d *GstDriver) SetEOSHandler(fn func())         {}
func (d *GstDriver) Play(url string, p int64) error  { return errNoGst }
func (d *GstDriver) Pause() error                    { return errNoGst }
func (d *GstDriver) Resume() error                   { return errNoGst }
func (d *GstDriver) Stop() error                     { return errNoGst }
func (d *GstDriver) Seek(positionMS int64) error     { return errNoGst }
func (d *GstDriver) SetVolume(volume float64) error  { return errNoGst }
func (d *GstDriver) SetMute(mute bool) error         { return errNoGst }
func (d *GstDriver) Position() (int64, int64, bool)  { return 0, 0, false }
