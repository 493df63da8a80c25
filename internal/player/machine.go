package player

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ErrQueueEmpty reports a playback request against an empty queue.
var ErrQueueEmpty = errors.New("queue empty")

// MachineConfig tunes the playback state machine.
type MachineConfig struct {
	DefaultVolume int
	PrefetchLimit int
	// Manual previous restarts the current track once this much has
	// elapsed instead of retreating.
	PreviousRestartMS int64
}

// Machine is the single source of truth for playback. It arbitrates
// commands to the active backend, normalizes backend status reports
// into the canonical snapshot, and owns queue-position semantics.
// Exactly one active backend exists at a time: the previous service is
// stopped before a new one is activated.
type Machine struct {
	log      *zap.Logger
	queue    *Queue
	resolver *Resolver
	backends BackendCaller
	config   MachineConfig

	mu            sync.Mutex
	state         auricle.State
	stopAfter     stopAfterCurrent
	volatileTrack auricle.Track
	broadcast     Broadcaster

	requestGen atomic.Int64
	reports    chan statusReport
	randIntN   func(n int) int
}

type statusReport struct {
	service  string
	status   auricle.BackendStatus
	gen      int64
	trackEnd bool
}

// NewMachine creates a stopped machine with an empty position.
func NewMachine(log *zap.Logger, queue *Queue, resolver *Resolver, backends BackendCaller, cfg MachineConfig) *Machine {
	if cfg.DefaultVolume <= 0 {
		cfg.DefaultVolume = 100
	}
	if cfg.PrefetchLimit <= 0 {
		cfg.PrefetchLimit = 100
	}
	if cfg.PreviousRestartMS <= 0 {
		cfg.PreviousRestartMS = 10_000
	}
	return &Machine{
		log:      log,
		queue:    queue,
		resolver: resolver,
		backends: backends,
		config:   cfg,
		state: auricle.State{
			Status:   auricle.StatusStop,
			Position: -1,
			Volume:   cfg.DefaultVolume,
			Updated:  time.Now().Unix(),
		},
		reports:  make(chan statusReport, 64),
		randIntN: rand.Intn,
	}
}

// SetBroadcaster wires the client fan-out sink.
func (m *Machine) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast = b
}

// Run consumes backend reports in arrival order until ctx ends.
func (m *Machine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.queue.Flush()
			return nil
		case report := <-m.reports:
			if report.trackEnd {
				m.handleTrackEnd(ctx, report)
			} else {
				m.applyStatus(report)
			}
		}
	}
}

// PushStatus queues a backend's native status report. Reports are
// stamped on arrival; any report predating a newer outbound request
// is discarded at apply time.
func (m *Machine) PushStatus(service string, status auricle.BackendStatus) {
	report := statusReport{service: service, status: status, gen: m.requestGen.Load()}
	select {
	case m.reports <- report:
	default:
		m.log.Warn("status report dropped, queue full", zap.String("service", service))
	}
}

// TrackEnded signals that the active backend finished its current
// track.
func (m *Machine) TrackEnded(service string) {
	report := statusReport{service: service, gen: m.requestGen.Load(), trackEnd: true}
	select {
	case m.reports <- report:
	default:
		m.log.Warn("track-end report dropped, queue full", zap.String("service", service))
	}
}

// SyncState applies a backend status report immediately. It is the
// only place backend-specific fields become canonical state; reports
// from a backend that is not the active one are ignored.
func (m *Machine) SyncState(service string, status auricle.BackendStatus) {
	m.applyStatus(statusReport{service: service, status: status, gen: m.requestGen.Load()})
}

// GetState returns the canonical snapshot.
func (m *Machine) GetState() auricle.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetQueue returns the play queue.
func (m *Machine) GetQueue() []auricle.Track {
	return m.queue.Items()
}

// AddQueueItems resolves and appends items, returning the index of the
// first added (or matched) entry.
func (m *Machine) AddQueueItems(ctx context.Context, items []auricle.Track) int {
	firstItemIndex := m.queue.Add(ctx, items)
	m.pushQueue()
	return firstItemIndex
}

// AddPlay appends items and starts playback at the first of them.
func (m *Machine) AddPlay(ctx context.Context, items []auricle.Track) error {
	index := m.AddQueueItems(ctx, items)
	return m.Play(ctx, &index)
}

// ReplaceAndPlay clears the queue, adds items and plays from the top.
func (m *Machine) ReplaceAndPlay(ctx context.Context, items []auricle.Track) error {
	m.ClearQueue(false)
	return m.AddPlay(ctx, items)
}

// PlayNext inserts an item directly after the current position.
func (m *Machine) PlayNext(ctx context.Context, item auricle.Track) {
	m.mu.Lock()
	position := m.state.Position
	m.mu.Unlock()

	m.queue.InsertAfter(ctx, position, item)
	m.pushQueue()
	m.toast("success", "Play next", item.Name)
}

// PreloadItems warms the resolver cache for upcoming entries.
func (m *Machine) PreloadItems(items []auricle.Track) {
	m.resolver.Prefetch(items, m.config.PrefetchLimit)
}

// PreloadItemsStop cancels any pending prefetch batch.
func (m *Machine) PreloadItemsStop() {
	m.resolver.CancelPrefetch()
}

// Play starts or resumes playback. With an index it jumps there
// first. Clears any volatile session.
func (m *Machine) Play(ctx context.Context, index *int) error {
	m.mu.Lock()
	m.state.Volatile = false
	position := m.state.Position
	if index != nil {
		position = *index
	}
	if position < 0 {
		position = 0
	}
	entry, ok := m.queue.At(position)
	if !ok {
		m.mu.Unlock()
		return ErrQueueEmpty
	}

	resume := index == nil &&
		m.state.Status == auricle.StatusPause &&
		m.state.Service == entry.Service

	previous := m.state.Service
	m.state.Position = position
	m.applyTrackLocked(entry)
	m.requestGen.Add(1)
	m.mu.Unlock()

	if previous != "" && previous != entry.Service {
		if err := m.backends.Stop(ctx, previous); err != nil && !errors.Is(err, ErrUnavailable) {
			m.log.Warn("cannot stop previous service", zap.String("service", previous), zap.Error(err))
		}
	}

	var err error
	if resume {
		err = m.backends.Resume(ctx, entry.Service)
	} else {
		service, tracks := m.queue.BlockTracks(position)
		err = m.backends.ClearAddPlayTracks(ctx, service, tracks)
		if errors.Is(err, ErrUnavailable) {
			err = m.backends.Play(ctx, service)
		}
	}
	if err != nil && !errors.Is(err, ErrUnavailable) {
		m.toast("error", "Playback failed", err.Error())
	}

	m.pushState()
	return nil
}

// VolatilePlay starts a transient session that is not tied to the
// durable queue position.
func (m *Machine) VolatilePlay(ctx context.Context, track auricle.Track) error {
	m.mu.Lock()
	previous := m.state.Service
	m.state.Volatile = true
	m.volatileTrack = track
	m.applyTrackLocked(track)
	m.requestGen.Add(1)
	m.mu.Unlock()

	if previous != "" && previous != track.Service {
		if err := m.backends.Stop(ctx, previous); err != nil && !errors.Is(err, ErrUnavailable) {
			m.log.Warn("cannot stop previous service", zap.String("service", previous), zap.Error(err))
		}
	}

	err := m.backends.ClearAddPlayTracks(ctx, track.Service, []auricle.Track{track})
	if errors.Is(err, ErrUnavailable) {
		err = m.backends.Play(ctx, track.Service)
	}
	if err != nil && !errors.Is(err, ErrUnavailable) {
		m.toast("error", "Playback failed", err.Error())
	}

	m.pushState()
	return nil
}

// Pause pauses the active backend. A capability gap is a logged
// no-op.
func (m *Machine) Pause(ctx context.Context) error {
	service := m.activeService()
	m.requestGen.Add(1)
	if err := m.backends.Pause(ctx, service); err != nil {
		if errors.Is(err, ErrUnavailable) {
			m.log.Warn("no pause method for service", zap.String("service", service))
			return nil
		}
		return err
	}
	return nil
}

// Stop stops the active backend.
func (m *Machine) Stop(ctx context.Context) error {
	service := m.activeService()
	m.requestGen.Add(1)
	if err := m.backends.Stop(ctx, service); err != nil {
		if errors.Is(err, ErrUnavailable) {
			m.log.Warn("no stop method for service", zap.String("service", service))
			return nil
		}
		return err
	}
	return nil
}

// Toggle flips between play and pause. Webradio tracks stop instead
// of pausing: live streams have no meaningful pause point.
func (m *Machine) Toggle(ctx context.Context) error {
	m.mu.Lock()
	status := m.state.Status
	trackType := m.state.TrackType
	volatile := m.state.Volatile
	track := m.volatileTrack
	m.mu.Unlock()

	switch status {
	case auricle.StatusStop, auricle.StatusPause:
		if volatile {
			return m.VolatilePlay(ctx, track)
		}
		return m.Play(ctx, nil)
	default:
		if trackType == "webradio" {
			return m.Stop(ctx)
		}
		return m.Pause(ctx)
	}
}

// Seek jumps to an absolute position in the current track.
func (m *Machine) Seek(ctx context.Context, positionMS int64) error {
	service := m.activeService()
	m.requestGen.Add(1)
	if err := m.backends.Seek(ctx, service, positionMS); err != nil {
		if errors.Is(err, ErrUnavailable) {
			m.log.Warn("no seek method for service", zap.String("service", service))
			return nil
		}
		return err
	}
	return nil
}

// FFWDRew seeks relative to the current position.
func (m *Machine) FFWDRew(ctx context.Context, deltaMS int64) error {
	m.mu.Lock()
	target := m.state.Seek + deltaMS
	limit := int64(m.state.Duration) * 1000
	m.mu.Unlock()

	if target < 0 {
		target = 0
	}
	if limit > 0 && target > limit {
		target = limit
	}
	return m.Seek(ctx, target)
}

// Next advances the queue position. Manual skips are always honored;
// automatic end-of-track advances obey repeat and consume rules.
func (m *Machine) Next(ctx context.Context, manual bool) error {
	m.mu.Lock()
	target, play := m.nextPositionLocked(manual)
	m.mu.Unlock()

	if !play {
		return m.Stop(ctx)
	}
	return m.Play(ctx, &target)
}

// Previous retreats the queue position. A manual previous restarts
// the current track once enough of it has elapsed.
func (m *Machine) Previous(ctx context.Context, manual bool) error {
	m.mu.Lock()
	length := m.queue.Len()
	if length == 0 {
		m.mu.Unlock()
		return ErrQueueEmpty
	}

	current := m.state.Position
	if current < 0 {
		current = 0
	}
	target := current

	switch {
	case manual && m.state.Seek > m.config.PreviousRestartMS:
		// restart current track
	case m.state.Random && length > 1:
		target = m.randomOtherLocked(current, length)
	case current > 0:
		target = current - 1
	case m.state.Repeat:
		target = length - 1
	}
	m.mu.Unlock()

	return m.Play(ctx, &target)
}

// SetRandom sets random mode.
func (m *Machine) SetRandom(value bool) {
	m.mu.Lock()
	m.state.Random = value
	m.mu.Unlock()
	m.pushState()
}

// SetRepeat sets repeat modes, keeping repeat-single implying repeat.
func (m *Machine) SetRepeat(repeat, repeatSingle bool) {
	m.mu.Lock()
	if repeatSingle {
		repeat = true
	}
	m.state.Repeat = repeat
	m.state.RepeatSingle = repeatSingle
	m.mu.Unlock()
	m.pushState()
}

// ToggleRandomRepeat cycles (off,off) -> (repeat,off) ->
// (repeat,single) -> (off,off). Entering repeat-single forces random
// off: single-track repeat and randomization are mutually exclusive.
func (m *Machine) ToggleRandomRepeat() {
	m.mu.Lock()
	repeat := m.state.Repeat
	repeatSingle := m.state.RepeatSingle

	newRepeat := !(repeat && repeatSingle)
	newRepeatSingle := repeat && !repeatSingle
	if newRepeatSingle {
		newRepeat = true
		m.state.Random = false
	}
	m.state.Repeat = newRepeat
	m.state.RepeatSingle = newRepeatSingle
	m.mu.Unlock()
	m.pushState()
}

// SetConsume sets consume mode: played tracks are removed from the
// queue once playback advances past them.
func (m *Machine) SetConsume(value bool) {
	m.mu.Lock()
	m.state.Consume = value
	m.mu.Unlock()
	m.pushState()
}

// ToggleStopAfterCurrent arms or disarms the one-shot stop marker for
// the current track.
func (m *Machine) ToggleStopAfterCurrent() bool {
	m.mu.Lock()
	var trackID string
	if entry, ok := m.queue.At(m.state.Position); ok {
		trackID = entry.ID
	}
	armed := m.stopAfter.toggle(trackID)
	m.state.StopAfterCurrent = armed
	m.mu.Unlock()
	m.pushState()
	return armed
}

// UpdateVolume merges a mixer-reported volume into the canonical
// state.
func (m *Machine) UpdateVolume(volume *int, mute *bool) {
	m.mu.Lock()
	if volume != nil {
		m.state.Volume = *volume
	}
	if mute != nil {
		m.state.Mute = *mute
	}
	m.mu.Unlock()
	m.pushState()
}

// RemoveQueueItem deletes one queue entry. Out-of-range indices are a
// no-op.
func (m *Machine) RemoveQueueItem(index int) {
	removed, ok := m.queue.Remove(index)
	if !ok {
		return
	}

	m.mu.Lock()
	m.reanchorLocked()
	m.stopAfter.invalidate(func(id string) bool {
		_, present := m.queue.IndexOfID(id)
		return present
	})
	m.state.StopAfterCurrent = m.stopAfter.isOn()
	m.mu.Unlock()

	m.toast("success", "Removed from queue", removed.Name)
	m.pushQueue()
	m.pushState()
}

// MoveQueueItem relocates one queue entry; out-of-bounds destinations
// leave the queue unchanged.
func (m *Machine) MoveQueueItem(from, to int) {
	m.mu.Lock()
	var currentID string
	if entry, ok := m.queue.At(m.state.Position); ok {
		currentID = entry.ID
	}
	m.mu.Unlock()

	if !m.queue.Move(from, to) {
		return
	}

	m.mu.Lock()
	if index, ok := m.queue.IndexOfID(currentID); ok {
		m.state.Position = index
	} else {
		m.reanchorLocked()
	}
	m.mu.Unlock()

	m.pushQueue()
	m.pushState()
}

// RemoveItemsAfterIndex truncates the queue after index.
func (m *Machine) RemoveItemsAfterIndex(index int) {
	m.queue.RemoveAfter(index)

	m.mu.Lock()
	m.reanchorLocked()
	m.stopAfter.invalidate(func(id string) bool {
		_, present := m.queue.IndexOfID(id)
		return present
	})
	m.state.StopAfterCurrent = m.stopAfter.isOn()
	m.mu.Unlock()

	m.pushQueue()
	m.pushState()
}

// ClearQueue empties the queue, optionally publishing an empty
// stopped snapshot.
func (m *Machine) ClearQueue(emitEmptyState bool) {
	m.queue.Clear()

	m.mu.Lock()
	m.state.Position = -1
	m.stopAfter.disarm()
	m.state.StopAfterCurrent = false
	if emitEmptyState {
		m.resetStateLocked()
	}
	m.mu.Unlock()

	m.pushQueue()
	if emitEmptyState {
		m.pushState()
	}
}

func (m *Machine) applyStatus(report statusReport) {
	m.mu.Lock()
	if m.state.Service != "" && report.service != m.state.Service {
		m.log.Debug("ignoring status from inactive service", zap.String("service", report.service))
		m.mu.Unlock()
		return
	}
	if report.gen < m.requestGen.Load() {
		m.log.Debug("discarding stale status report", zap.String("service", report.service))
		m.mu.Unlock()
		return
	}

	m.mergeStatusLocked(report.status)
	m.state.Updated = time.Now().Unix()
	m.mu.Unlock()

	m.pushState()
}

func (m *Machine) handleTrackEnd(ctx context.Context, report statusReport) {
	m.mu.Lock()
	if m.state.Service != "" && report.service != m.state.Service {
		m.mu.Unlock()
		return
	}
	if report.gen < m.requestGen.Load() {
		m.mu.Unlock()
		return
	}

	if m.state.Volatile {
		m.state.Volatile = false
		m.state.Status = auricle.StatusStop
		m.state.Seek = 0
		m.mu.Unlock()
		m.pushState()
		return
	}

	finishedIndex := m.state.Position
	finished, ok := m.queue.At(finishedIndex)
	if !ok {
		m.mu.Unlock()
		return
	}

	if m.stopAfter.fire(finished.ID) {
		m.state.Status = auricle.StatusStop
		m.state.Seek = 0
		m.state.StopAfterCurrent = false
		m.requestGen.Add(1)
		m.mu.Unlock()

		if err := m.backends.Stop(ctx, finished.Service); err != nil && !errors.Is(err, ErrUnavailable) {
			m.log.Warn("cannot stop after current", zap.Error(err))
		}
		m.pushState()
		return
	}

	target, play := m.nextPositionLocked(false)

	consume := m.state.Consume
	if consume {
		m.queue.Remove(finishedIndex)
		if finishedIndex < target {
			target--
		}
		m.reanchorLocked()
		if m.queue.Len() == 0 {
			play = false
		}
	}
	m.mu.Unlock()

	if consume {
		m.pushQueue()
	}

	if !play {
		_ = m.Stop(ctx)
		m.mu.Lock()
		m.state.Status = auricle.StatusStop
		m.state.Seek = 0
		m.mu.Unlock()
		m.pushState()
		return
	}
	if err := m.Play(ctx, &target); err != nil {
		m.log.Warn("cannot advance after track end", zap.Error(err))
	}
}

// nextPositionLocked computes the next queue position. The second
// return is false when playback should stop at the boundary.
func (m *Machine) nextPositionLocked(manual bool) (int, bool) {
	length := m.queue.Len()
	if length == 0 {
		return 0, false
	}
	current := m.state.Position
	if current < 0 {
		return 0, true
	}

	if m.state.RepeatSingle && !manual {
		return current, true
	}
	if m.state.Random && length > 1 {
		return m.randomOtherLocked(current, length), true
	}

	target := current + 1
	if target >= length {
		if m.state.Repeat {
			return 0, true
		}
		return current, false
	}
	return target, true
}

// randomOtherLocked picks uniformly among all indices except current.
func (m *Machine) randomOtherLocked(current, length int) int {
	index := m.randIntN(length - 1)
	if index >= current {
		index++
	}
	return index
}

func (m *Machine) mergeStatusLocked(status auricle.BackendStatus) {
	if status.Status != nil {
		m.state.Status = *status.Status
	}
	if status.Seek != nil {
		m.state.Seek = *status.Seek
	}
	if status.Duration != nil {
		m.state.Duration = *status.Duration
	}
	if status.Title != nil {
		m.state.Title = *status.Title
	}
	if status.Artist != nil {
		m.state.Artist = *status.Artist
	}
	if status.Album != nil {
		m.state.Album = *status.Album
	}
	if status.AlbumArt != nil {
		m.state.AlbumArt = *status.AlbumArt
	}
	if status.URI != nil {
		m.state.URI = *status.URI
	}
	if status.TrackType != nil {
		m.state.TrackType = *status.TrackType
	}
	if status.Samplerate != nil {
		m.state.Samplerate = *status.Samplerate
	}
	if status.Bitdepth != nil {
		m.state.Bitdepth = *status.Bitdepth
	}
	if status.Channels != nil {
		m.state.Channels = *status.Channels
	}
	if status.Bitrate != nil {
		m.state.Bitrate = *status.Bitrate
	}
	if status.Volume != nil {
		m.state.Volume = *status.Volume
	}
	if status.Mute != nil {
		m.state.Mute = *status.Mute
	}
}

// applyTrackLocked projects a queue entry's metadata into the
// snapshot. Confirmed backend reports overwrite these fields later.
func (m *Machine) applyTrackLocked(entry auricle.Track) {
	m.state.Service = entry.Service
	m.state.TrackType = entry.Type
	m.state.Title = entry.Name
	m.state.Artist = entry.Artist
	m.state.Album = entry.Album
	m.state.AlbumArt = entry.AlbumArt
	m.state.URI = entry.URI
	m.state.Duration = entry.Duration
	m.state.Samplerate = entry.Samplerate
	m.state.Bitdepth = entry.Bitdepth
	m.state.Channels = entry.Channels
	m.state.Seek = 0
	m.state.Updated = time.Now().Unix()
}

func (m *Machine) resetStateLocked() {
	volume := m.state.Volume
	mute := m.state.Mute
	random := m.state.Random
	repeat := m.state.Repeat
	repeatSingle := m.state.RepeatSingle
	consume := m.state.Consume

	m.state = auricle.State{
		Status:       auricle.StatusStop,
		Position:     -1,
		Volume:       volume,
		Mute:         mute,
		Random:       random,
		Repeat:       repeat,
		RepeatSingle: repeatSingle,
		Consume:      consume,
		Updated:      time.Now().Unix(),
	}
}

// reanchorLocked keeps the position a valid index after queue
// shrinkage.
func (m *Machine) reanchorLocked() {
	length := m.queue.Len()
	if length == 0 {
		m.state.Position = -1
		return
	}
	if m.state.Position >= length {
		m.state.Position = length - 1
	}
}

func (m *Machine) activeService() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Service
}

func (m *Machine) pushState() {
	m.mu.Lock()
	b := m.broadcast
	snapshot := m.state
	m.mu.Unlock()
	if b != nil {
		b.PushState(snapshot)
	}
}

func (m *Machine) pushQueue() {
	m.mu.Lock()
	b := m.broadcast
	m.mu.Unlock()
	if b != nil {
		b.PushQueue(m.queue.Items())
	}
}

func (m *Machine) toast(kind, title, message string) {
	m.mu.Lock()
	b := m.broadcast
	m.mu.Unlock()
	if b != nil {
		b.PushToast(kind, title, message)
	}
}
