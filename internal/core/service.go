package core

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/auricle-audio/auricle/internal/ports"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

// Service orchestrates auricle CLI use cases. Every mutation is a
// command envelope published to the daemon; reads come from the
// state.get/queue.get commands.
type Service struct {
	Broker ports.Broker
	IDGen  ports.IDGen
	Config Config

	// Now stamps outgoing envelopes; overridable in tests.
	Now func() int64
}

// NewService builds a Service with a wall-clock timestamp source.
func NewService(broker ports.Broker, idgen ports.IDGen, cfg Config) Service {
	return Service{
		Broker: broker,
		IDGen:  idgen,
		Config: cfg,
		Now:    func() int64 { return time.Now().Unix() },
	}
}

// Status returns the daemon's canonical player state.
func (s Service) Status(ctx context.Context) (auricle.State, error) {
	reply, err := s.request(ctx, "state.get", struct{}{})
	if err != nil {
		return auricle.State{}, err
	}
	var body auricle.StateGetReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return auricle.State{}, WrapError(ExitRuntime, "decode state reply", err)
	}
	return body.State, nil
}

// Watch streams state snapshots and toasts until ctx is done.
func (s Service) Watch(ctx context.Context) (<-chan auricle.State, <-chan auricle.Toast, <-chan error) {
	return s.Broker.WatchPlayer(ctx)
}

// Queue returns the full play queue.
func (s Service) Queue(ctx context.Context) ([]auricle.Track, error) {
	reply, err := s.request(ctx, "queue.get", struct{}{})
	if err != nil {
		return nil, err
	}
	var body auricle.QueueGetReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return nil, WrapError(ExitRuntime, "decode queue reply", err)
	}
	return body.Items, nil
}

// Play starts playback, optionally at a queue index.
func (s Service) Play(ctx context.Context, index *int) error {
	return s.simple(ctx, "playback.play", auricle.PlaybackPlayBody{Index: index})
}

// Pause pauses playback.
func (s Service) Pause(ctx context.Context) error {
	return s.simple(ctx, "playback.pause", struct{}{})
}

// Stop stops playback.
func (s Service) Stop(ctx context.Context) error {
	return s.simple(ctx, "playback.stop", struct{}{})
}

// Toggle flips between play and pause.
func (s Service) Toggle(ctx context.Context) error {
	return s.simple(ctx, "playback.toggle", struct{}{})
}

// Next skips to the next track.
func (s Service) Next(ctx context.Context) error {
	return s.simple(ctx, "playback.next", auricle.PlaybackSkipBody{Manual: true})
}

// Prev restarts or retreats to the previous track.
func (s Service) Prev(ctx context.Context) error {
	return s.simple(ctx, "playback.prev", auricle.PlaybackSkipBody{Manual: true})
}

// Seek seeks to an absolute position or by a +/- delta.
func (s Service) Seek(ctx context.Context, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return &CLIError{Code: ExitUsage, Msg: "seek position required"}
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := parseDurationToMS(arg)
		if err != nil {
			return err
		}
		return s.simple(ctx, "playback.ffwdRew", auricle.PlaybackFFWDRewBody{DeltaMS: delta})
	}
	position, err := parseDurationToMS(arg)
	if err != nil {
		return err
	}
	return s.simple(ctx, "playback.seek", auricle.PlaybackSeekBody{PositionMS: position})
}

// SetVolume sets an absolute or relative volume, or toggles mute.
func (s Service) SetVolume(ctx context.Context, arg string, mute *bool) error {
	if mute != nil {
		state, err := s.Status(ctx)
		if err != nil {
			return err
		}
		return s.simple(ctx, "playback.setVolume", auricle.PlaybackSetVolumeBody{Volume: state.Volume, Mute: mute})
	}

	arg = strings.TrimSpace(arg)
	if arg == "" {
		return &CLIError{Code: ExitUsage, Msg: "volume argument required"}
	}
	volume := 0
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := strconv.Atoi(arg)
		if err != nil {
			return &CLIError{Code: ExitUsage, Msg: "invalid volume delta"}
		}
		state, err := s.Status(ctx)
		if err != nil {
			return err
		}
		volume = state.Volume + delta
	} else {
		value, err := strconv.Atoi(arg)
		if err != nil {
			return &CLIError{Code: ExitUsage, Msg: "invalid volume"}
		}
		volume = value
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	return s.simple(ctx, "playback.setVolume", auricle.PlaybackSetVolumeBody{Volume: volume})
}

// SetRandom sets shuffle mode.
func (s Service) SetRandom(ctx context.Context, value bool) error {
	return s.simple(ctx, "playback.setRandom", auricle.SetRandomBody{Value: value})
}

// SetRepeat sets repeat and repeat-single modes.
func (s Service) SetRepeat(ctx context.Context, repeat, repeatSingle bool) error {
	return s.simple(ctx, "playback.setRepeat", auricle.SetRepeatBody{Repeat: repeat, RepeatSingle: repeatSingle})
}

// SetConsume sets consume mode.
func (s Service) SetConsume(ctx context.Context, value bool) error {
	return s.simple(ctx, "playback.setConsume", auricle.SetConsumeBody{Value: value})
}

// ToggleRandomRepeat cycles the combined random/repeat mode.
func (s Service) ToggleRandomRepeat(ctx context.Context) error {
	return s.simple(ctx, "playback.toggleRandomRepeat", struct{}{})
}

// ToggleStopAfterCurrent arms or disarms stop-after-current.
func (s Service) ToggleStopAfterCurrent(ctx context.Context) error {
	return s.simple(ctx, "playback.toggleStopAfterCurrent", struct{}{})
}

// QueueAdd appends items and reports the index of the first new entry.
func (s Service) QueueAdd(ctx context.Context, items []string, service string) (int, error) {
	tracks, err := buildTracks(items, service)
	if err != nil {
		return 0, err
	}
	reply, err := s.request(ctx, "queue.add", auricle.QueueAddBody{Items: tracks})
	if err != nil {
		return 0, err
	}
	var body auricle.QueueAddReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return 0, WrapError(ExitRuntime, "decode add reply", err)
	}
	return body.FirstItemIndex, nil
}

// QueueAddPlay appends items and starts playing the first of them.
func (s Service) QueueAddPlay(ctx context.Context, items []string, service string) error {
	tracks, err := buildTracks(items, service)
	if err != nil {
		return err
	}
	return s.simple(ctx, "queue.addPlay", auricle.QueueAddBody{Items: tracks})
}

// QueueReplacePlay clears the queue, adds items and plays.
func (s Service) QueueReplacePlay(ctx context.Context, items []string, service string) error {
	tracks, err := buildTracks(items, service)
	if err != nil {
		return err
	}
	return s.simple(ctx, "queue.replacePlay", auricle.QueueAddBody{Items: tracks})
}

// QueuePlayNext inserts one item right after the playing track.
func (s Service) QueuePlayNext(ctx context.Context, item string, service string) error {
	tracks, err := buildTracks([]string{item}, service)
	if err != nil {
		return err
	}
	return s.simple(ctx, "queue.playNext", auricle.QueuePlayNextBody{Item: tracks[0]})
}

// QueueRemove removes one entry by index.
func (s Service) QueueRemove(ctx context.Context, index int) error {
	return s.simple(ctx, "queue.remove", auricle.QueueRemoveBody{Index: index})
}

// QueueRemoveAfter truncates everything after index.
func (s Service) QueueRemoveAfter(ctx context.Context, index int) error {
	return s.simple(ctx, "queue.removeAfter", auricle.QueueRemoveAfterBody{Index: index})
}

// QueueMove relocates an entry.
func (s Service) QueueMove(ctx context.Context, from, to int) error {
	return s.simple(ctx, "queue.move", auricle.QueueMoveBody{From: from, To: to})
}

// QueueClear empties the queue.
func (s Service) QueueClear(ctx context.Context) error {
	return s.simple(ctx, "queue.clear", auricle.QueueClearBody{EmitEmptyState: true})
}

func (s Service) simple(ctx context.Context, cmdType string, body any) error {
	_, err := s.request(ctx, cmdType, body)
	return err
}

func (s Service) request(ctx context.Context, cmdType string, body any) (auricle.ReplyEnvelope, error) {
	cmd, err := auricle.NewCommand(cmdType, body)
	if err != nil {
		return auricle.ReplyEnvelope{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Now()
	cmd.From = s.Config.From
	cmd.ReplyTo = s.Broker.ReplyTopic()

	reply, err := s.Broker.PublishCommand(ctx, cmd)
	if err != nil {
		return auricle.ReplyEnvelope{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return auricle.ReplyEnvelope{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return reply, nil
}

func buildTracks(items []string, service string) ([]auricle.Track, error) {
	tracks := make([]auricle.Track, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, &CLIError{Code: ExitUsage, Msg: "empty item"}
		}
		tracks = append(tracks, auricle.Track{URI: item, Service: service})
	}
	if len(tracks) == 0 {
		return nil, &CLIError{Code: ExitUsage, Msg: "at least one item required"}
	}
	return tracks, nil
}

func parseDurationToMS(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "duration required"}
	}
	if strings.HasSuffix(arg, "ms") || strings.HasSuffix(arg, "s") || strings.HasSuffix(arg, "m") || strings.HasSuffix(arg, "h") {
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
		}
		return int64(dur / time.Millisecond), nil
	}
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
	}
	return value, nil
}
