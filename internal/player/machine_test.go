package player

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

func newTestMachine(t *testing.T) (*Machine, *fakeBackend, *fakeBroadcaster) {
	t.Helper()
	log := zap.NewNop()
	backend := newFakeBackend()
	resolver := NewResolver(log, backend, ResolverConfig{})
	queue := NewQueue(log, resolver, QueueConfig{})
	machine := NewMachine(log, queue, resolver, backend, MachineConfig{})
	broadcast := &fakeBroadcaster{}
	machine.SetBroadcaster(broadcast)
	return machine, backend, broadcast
}

func addTracks(t *testing.T, m *Machine, uris ...string) {
	t.Helper()
	items := make([]auricle.Track, len(uris))
	for i, uri := range uris {
		items[i] = auricle.Track{URI: uri, Service: "local", Type: "song", Name: uri}
	}
	if got := m.AddQueueItems(context.Background(), items); got < 0 {
		t.Fatalf("add returned %d", got)
	}
}

func statusReportFor(m *Machine, service string, status auricle.Status, seek int64) statusReport {
	return statusReport{
		service: service,
		status:  auricle.BackendStatus{Status: &status, Seek: &seek},
		gen:     m.requestGen.Load(),
	}
}

func TestPlayDispatchesTrackBlock(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac", "mnt/c.flac")

	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	batch := backend.lastBatch()
	if len(batch) != 3 {
		t.Fatalf("expected full block of 3, got %d", len(batch))
	}
	state := machine.GetState()
	if state.Position != 0 || state.Service != "local" {
		t.Fatalf("unexpected state after play: %+v", state)
	}
}

func TestPlayEmptyQueue(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	if err := machine.Play(context.Background(), nil); err != ErrQueueEmpty {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestPlayFallsBackOnMissingBatchLoad(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	backend.missing["clearAddPlay"] = true
	addTracks(t, machine, "mnt/a.flac")

	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	calls := backend.callLog()
	if calls[len(calls)-1] != "play:local" {
		t.Fatalf("expected plain play fallback, calls: %v", calls)
	}
}

func TestPlaySwitchingServiceStopsPrevious(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")
	machine.mu.Lock()
	machine.state.Service = "webradio"
	machine.state.Status = auricle.StatusPlay
	machine.mu.Unlock()

	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	var stopped bool
	for _, call := range backend.callLog() {
		if call == "stop:webradio" {
			stopped = true
		}
	}
	if !stopped {
		t.Fatal("expected previous service to be stopped before switching")
	}
}

func TestResumeAfterPause(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")

	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.SyncState("local", pausedReport())

	if err := machine.Play(context.Background(), nil); err != nil {
		t.Fatalf("resume: %v", err)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "resume:local" {
		t.Fatalf("expected resume, calls: %v", calls)
	}
}

func pausedReport() auricle.BackendStatus {
	status := auricle.StatusPause
	return auricle.BackendStatus{Status: &status}
}

func TestToggleWebradioStopsInsteadOfPausing(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	machine.mu.Lock()
	machine.state.Status = auricle.StatusPlay
	machine.state.Service = "webradio"
	machine.state.TrackType = "webradio"
	machine.mu.Unlock()

	if err := machine.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "stop:webradio" {
		t.Fatalf("expected stop for live stream, calls: %v", calls)
	}
}

func TestTogglePausesRegularTrack(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	machine.mu.Lock()
	machine.state.Status = auricle.StatusPlay
	machine.state.Service = "local"
	machine.state.TrackType = "song"
	machine.mu.Unlock()

	if err := machine.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "pause:local" {
		t.Fatalf("expected pause, calls: %v", calls)
	}
}

func TestPauseCapabilityGapIsNoop(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	backend.missing["pause"] = true
	machine.mu.Lock()
	machine.state.Service = "webradio"
	machine.state.Status = auricle.StatusPlay
	machine.mu.Unlock()

	if err := machine.Pause(context.Background()); err != nil {
		t.Fatalf("capability gap must not surface as error, got %v", err)
	}
}

func TestToggleRandomRepeatCycle(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	machine.SetRandom(true)

	machine.ToggleRandomRepeat()
	state := machine.GetState()
	if !state.Repeat || state.RepeatSingle {
		t.Fatalf("first toggle should enable repeat only: %+v", state)
	}

	machine.ToggleRandomRepeat()
	state = machine.GetState()
	if !state.Repeat || !state.RepeatSingle {
		t.Fatalf("second toggle should enable repeat-single: %+v", state)
	}
	if state.Random {
		t.Fatal("random must be forced off when entering repeat-single")
	}

	machine.ToggleRandomRepeat()
	state = machine.GetState()
	if state.Repeat || state.RepeatSingle {
		t.Fatalf("third toggle should clear both: %+v", state)
	}
}

func TestSetRepeatSingleImpliesRepeat(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	machine.SetRepeat(false, true)
	state := machine.GetState()
	if !state.Repeat || !state.RepeatSingle {
		t.Fatalf("repeat-single must imply repeat: %+v", state)
	}
}

func TestStaleStatusReportDiscarded(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.SyncState("local", playingReport(0))

	stale := statusReportFor(machine, "local", auricle.StatusPlay, 5000)
	machine.requestGen.Add(1)
	machine.applyStatus(stale)

	state := machine.GetState()
	if state.Seek == 5000 {
		t.Fatal("stale report must not overwrite state")
	}
}

func playingReport(seek int64) auricle.BackendStatus {
	status := auricle.StatusPlay
	return auricle.BackendStatus{Status: &status, Seek: &seek}
}

func TestInactiveServiceReportIgnored(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	machine.mu.Lock()
	machine.state.Service = "local"
	machine.mu.Unlock()

	machine.SyncState("webradio", playingReport(1000))
	state := machine.GetState()
	if state.Seek != 0 || state.Status != auricle.StatusStop {
		t.Fatalf("report from inactive service applied: %+v", state)
	}
}

func TestSyncStateMergesPartialReport(t *testing.T) {
	machine, _, broadcast := newTestMachine(t)
	machine.mu.Lock()
	machine.state.Service = "local"
	machine.state.Title = "Song A"
	machine.mu.Unlock()

	seek := int64(42_000)
	machine.SyncState("local", auricle.BackendStatus{Seek: &seek})

	state := machine.GetState()
	if state.Seek != 42_000 {
		t.Fatalf("seek not merged: %+v", state)
	}
	if state.Title != "Song A" {
		t.Fatal("missing fields must leave existing values untouched")
	}
	if last, ok := broadcast.lastState(); !ok || last.Seek != 42_000 {
		t.Fatal("merged state was not broadcast")
	}
}

func TestTrackEndAdvances(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac", "mnt/c.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	if state := machine.GetState(); state.Position != 1 {
		t.Fatalf("expected advance to position 1, got %d", state.Position)
	}
	batch := backend.lastBatch()
	if len(batch) == 0 || batch[0].URI != "mnt/b.flac" {
		t.Fatalf("expected playback from second track, got %+v", batch)
	}
}

func TestTrackEndAtTailStopsWithoutRepeat(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	state := machine.GetState()
	if state.Status != auricle.StatusStop {
		t.Fatalf("expected stop at tail, got %s", state.Status)
	}
	if state.Position != 1 {
		t.Fatalf("position must stay anchored at tail, got %d", state.Position)
	}
	calls := backend.callLog()
	if !strings.HasPrefix(calls[len(calls)-1], "stop:") {
		t.Fatalf("expected stop dispatch, calls: %v", calls)
	}
}

func TestTrackEndAtTailWrapsWithRepeat(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	machine.SetRepeat(true, false)
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	if state := machine.GetState(); state.Position != 0 {
		t.Fatalf("expected wrap to position 0, got %d", state.Position)
	}
	batch := backend.lastBatch()
	if len(batch) == 0 || batch[0].URI != "mnt/a.flac" {
		t.Fatalf("expected playback from first track, got %+v", batch)
	}
}

func TestTrackEndRepeatSingleReplays(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	machine.SetRepeat(true, true)
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	if state := machine.GetState(); state.Position != 0 {
		t.Fatalf("repeat-single must replay position 0, got %d", state.Position)
	}
	batch := backend.lastBatch()
	if len(batch) == 0 || batch[0].URI != "mnt/a.flac" {
		t.Fatalf("expected same track replayed, got %+v", batch)
	}
}

func TestManualNextOverridesRepeatSingle(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	machine.SetRepeat(true, true)
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	if err := machine.Next(context.Background(), true); err != nil {
		t.Fatalf("next: %v", err)
	}
	if state := machine.GetState(); state.Position != 1 {
		t.Fatalf("manual skip must advance, got position %d", state.Position)
	}
}

func TestManualNextAtTailStops(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	if err := machine.Next(context.Background(), true); err != nil {
		t.Fatalf("next: %v", err)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "stop:local" {
		t.Fatalf("expected stop at boundary, calls: %v", calls)
	}
}

func TestRandomNextExcludesCurrent(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac", "mnt/c.flac")
	machine.SetRandom(true)
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	// draw 1 lands on the current index before adjustment
	machine.randIntN = func(n int) int {
		if n != 2 {
			t.Fatalf("expected draw over length-1=2, got %d", n)
		}
		return 1
	}
	if err := machine.Next(context.Background(), true); err != nil {
		t.Fatalf("next: %v", err)
	}
	if state := machine.GetState(); state.Position != 2 {
		t.Fatalf("draw must skip over current index, got %d", state.Position)
	}
}

func TestPreviousRestartsAfterThreshold(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.SyncState("local", playingReport(15_000))

	if err := machine.Previous(context.Background(), true); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if state := machine.GetState(); state.Position != 1 {
		t.Fatalf("deep into the track previous must restart it, got %d", state.Position)
	}
}

func TestPreviousRetreatsEarly(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.SyncState("local", playingReport(3_000))

	if err := machine.Previous(context.Background(), true); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if state := machine.GetState(); state.Position != 0 {
		t.Fatalf("expected retreat to 0, got %d", state.Position)
	}
}

func TestStopAfterCurrentFiresOnce(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	if !machine.ToggleStopAfterCurrent() {
		t.Fatal("toggle should arm")
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	state := machine.GetState()
	if state.Status != auricle.StatusStop || state.StopAfterCurrent {
		t.Fatalf("expected stopped and disarmed, got %+v", state)
	}
	if state.Position != 0 {
		t.Fatalf("position must not advance past the marked track, got %d", state.Position)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "stop:local" {
		t.Fatalf("expected stop dispatch, calls: %v", calls)
	}

	// next end-of-track advances normally, the marker is spent
	index = 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("replay: %v", err)
	}
	end = statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)
	if state := machine.GetState(); state.Position != 1 {
		t.Fatalf("spent marker must not fire again, got position %d", state.Position)
	}
}

func TestStopAfterCurrentDisarmedWhenTrackRemoved(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.ToggleStopAfterCurrent()

	machine.RemoveQueueItem(0)

	if state := machine.GetState(); state.StopAfterCurrent {
		t.Fatal("marker must disarm when its track leaves the queue")
	}
}

func TestConsumeRemovesFinishedTrack(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac", "mnt/c.flac")
	machine.SetConsume(true)
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	items := machine.GetQueue()
	if len(items) != 2 {
		t.Fatalf("expected finished track removed, got %d items", len(items))
	}
	if items[0].URI != "mnt/b.flac" {
		t.Fatalf("unexpected queue head: %s", items[0].URI)
	}
	if state := machine.GetState(); state.Position != 0 {
		t.Fatalf("position must account for the removal, got %d", state.Position)
	}
}

func TestConsumeEmptiedQueueClearsPosition(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")
	machine.SetConsume(true)
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	end := statusReport{service: "local", gen: machine.requestGen.Load(), trackEnd: true}
	machine.handleTrackEnd(context.Background(), end)

	if items := machine.GetQueue(); len(items) != 0 {
		t.Fatalf("expected empty queue, got %d items", len(items))
	}
	state := machine.GetState()
	if state.Status != auricle.StatusStop {
		t.Fatalf("expected stopped, got %s", state.Status)
	}
	if state.Position != -1 {
		t.Fatalf("position must not reference the emptied queue, got %d", state.Position)
	}
}

func TestMoveQueueItemFollowsCurrentTrack(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac", "mnt/c.flac")
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	machine.MoveQueueItem(0, 2)

	state := machine.GetState()
	if state.Position != 2 {
		t.Fatalf("position must follow the moved current track, got %d", state.Position)
	}
}

func TestRemoveQueueItemReanchorsPosition(t *testing.T) {
	machine, _, _ := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac", "mnt/b.flac")
	index := 1
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}

	machine.RemoveQueueItem(1)

	if state := machine.GetState(); state.Position != 0 {
		t.Fatalf("position must clamp into bounds, got %d", state.Position)
	}
}

func TestClearQueueEmitsEmptyState(t *testing.T) {
	machine, _, broadcast := newTestMachine(t)
	addTracks(t, machine, "mnt/a.flac")
	machine.SetRepeat(true, false)
	index := 0
	if err := machine.Play(context.Background(), &index); err != nil {
		t.Fatalf("play: %v", err)
	}
	machine.SyncState("local", playingReport(0))

	machine.ClearQueue(true)

	state, ok := broadcast.lastState()
	if !ok {
		t.Fatal("expected an empty snapshot broadcast")
	}
	if state.Status != auricle.StatusStop || state.Position != -1 || state.Title != "" {
		t.Fatalf("expected reset snapshot, got %+v", state)
	}
	if !state.Repeat {
		t.Fatal("mode flags must survive a queue clear")
	}
}

func TestVolatileToggleResumesVolatileSession(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	track := auricle.Track{ID: "v1", URI: "http://radio/stream", Service: "webradio", Type: "webradio", Name: "FM4"}
	if err := machine.VolatilePlay(context.Background(), track); err != nil {
		t.Fatalf("volatile play: %v", err)
	}
	if state := machine.GetState(); !state.Volatile {
		t.Fatal("expected volatile flag set")
	}

	machine.mu.Lock()
	machine.state.Status = auricle.StatusStop
	machine.mu.Unlock()

	if err := machine.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	calls := backend.callLog()
	last := calls[len(calls)-1]
	if last != "clearAddPlay:webradio:1" {
		t.Fatalf("expected volatile session restart, calls: %v", calls)
	}
}

func TestUpdateVolume(t *testing.T) {
	machine, _, broadcast := newTestMachine(t)
	volume := 37
	mute := true
	machine.UpdateVolume(&volume, &mute)

	state, ok := broadcast.lastState()
	if !ok || state.Volume != 37 || !state.Mute {
		t.Fatalf("volume update not applied: %+v", state)
	}

	machine.UpdateVolume(nil, nil)
	state = machine.GetState()
	if state.Volume != 37 || !state.Mute {
		t.Fatal("nil fields must leave volume state untouched")
	}
}

func TestFFWDRewClampsToTrackBounds(t *testing.T) {
	machine, backend, _ := newTestMachine(t)
	machine.mu.Lock()
	machine.state.Service = "local"
	machine.state.Seek = 5_000
	machine.state.Duration = 100
	machine.mu.Unlock()

	if err := machine.FFWDRew(context.Background(), -30_000); err != nil {
		t.Fatalf("rew: %v", err)
	}
	calls := backend.callLog()
	if calls[len(calls)-1] != "seek:local:0" {
		t.Fatalf("expected clamp to 0, calls: %v", calls)
	}

	if err := machine.FFWDRew(context.Background(), 500_000); err != nil {
		t.Fatalf("ffwd: %v", err)
	}
	calls = backend.callLog()
	if calls[len(calls)-1] != "seek:local:100000" {
		t.Fatalf("expected clamp to duration, calls: %v", calls)
	}
}
