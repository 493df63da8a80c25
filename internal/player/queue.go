package player

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// QueueConfig tunes queue persistence.
type QueueConfig struct {
	PersistPath  string
	SaveDebounce time.Duration
}

// Queue owns the ordered play queue and its durable representation.
// Insertion order is playback order; the same URI may appear multiple
// times. Every mutation triggers a debounced asynchronous write of the
// full queue document.
type Queue struct {
	log      *zap.Logger
	resolver *Resolver
	config   QueueConfig

	mu        sync.Mutex
	items     []auricle.Track
	saveTimer *time.Timer
}

// NewQueue creates a queue and loads the durable copy best-effort: a
// missing or corrupt file yields an empty queue, never a failure.
func NewQueue(log *zap.Logger, resolver *Resolver, cfg QueueConfig) *Queue {
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = 50 * time.Millisecond
	}
	queue := &Queue{log: log, resolver: resolver, config: cfg}
	queue.load()
	return queue
}

// Items returns a snapshot copy of the queue.
func (q *Queue) Items() []auricle.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Len returns the queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// At returns the entry at index.
func (q *Queue) At(index int) (auricle.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return auricle.Track{}, false
	}
	return q.items[index], true
}

// Add resolves items in parallel and appends the playable results,
// returning the index of the first added entry. When the resolved
// batch exactly matches the existing queue tail by normalized URI it
// is not appended again and the returned index points at the existing
// tail start, making repeated "play this album" taps idempotent.
// Resolution failures drop individual entries, never the batch.
func (q *Queue) Add(ctx context.Context, items []auricle.Track) int {
	q.resolver.CancelPrefetch()

	results := make([][]auricle.Track, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		if item.URI == "" {
			continue
		}
		q.log.Info("adding item to queue", zap.String("uri", item.URI))
		wg.Add(1)
		go func(i int, item auricle.Track) {
			defer wg.Done()
			results[i] = q.resolver.Resolve(ctx, item)
		}(i, item)
	}
	wg.Wait()
	resolved := lo.Flatten(results)

	q.mu.Lock()
	firstItemIndex := len(q.items)
	if len(q.items) > 0 && len(resolved) > 0 && len(q.items) >= len(resolved) {
		tail := q.items[len(q.items)-len(resolved):]
		if sameTrackList(tail, resolved) {
			firstItemIndex = len(q.items) - len(resolved)
			q.mu.Unlock()
			return firstItemIndex
		}
	}
	q.items = append(q.items, resolved...)
	q.scheduleSaveLocked()
	q.mu.Unlock()
	return firstItemIndex
}

// InsertAfter resolves one item and inserts the results directly
// after index, used for play-next.
func (q *Queue) InsertAfter(ctx context.Context, index int, item auricle.Track) {
	resolved := q.resolver.Resolve(ctx, item)
	if len(resolved) == 0 {
		return
	}

	q.mu.Lock()
	at := index + 1
	if at < 0 {
		at = 0
	}
	if at > len(q.items) {
		at = len(q.items)
	}
	updated := make([]auricle.Track, 0, len(q.items)+len(resolved))
	updated = append(updated, q.items[:at]...)
	updated = append(updated, resolved...)
	updated = append(updated, q.items[at:]...)
	q.items = updated
	q.scheduleSaveLocked()
	q.mu.Unlock()
}

// Remove deletes one entry. Out-of-range indices are a no-op.
func (q *Queue) Remove(index int) (auricle.Track, bool) {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return auricle.Track{}, false
	}
	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	q.scheduleSaveLocked()
	q.mu.Unlock()
	return removed, true
}

// RemoveAfter truncates the queue to index inclusive.
func (q *Queue) RemoveAfter(index int) {
	q.mu.Lock()
	if index < 0 || index >= len(q.items)-1 {
		q.mu.Unlock()
		return
	}
	q.items = q.items[:index+1]
	q.scheduleSaveLocked()
	q.mu.Unlock()
}

// Move relocates one entry. A destination outside the current bounds
// resolves without mutation.
func (q *Queue) Move(from, to int) bool {
	q.mu.Lock()
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		q.mu.Unlock()
		return false
	}
	entry := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]auricle.Track{entry}, q.items[to:]...)...)
	q.scheduleSaveLocked()
	q.mu.Unlock()
	return true
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.scheduleSaveLocked()
	q.mu.Unlock()
}

// TrackBlock returns the maximal contiguous run of entries from
// startIndex sharing the same backend service.
func (q *Queue) TrackBlock(startIndex int) auricle.TrackBlock {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return auricle.TrackBlock{}
	}
	start := startIndex
	if start < 0 {
		start = 0
	}
	if start > len(q.items)-1 {
		start = len(q.items) - 1
	}

	service := q.items[start].Service
	end := start
	for end < len(q.items)-1 && q.items[end+1].Service == service {
		end++
	}

	uris := lo.Map(q.items[start:end+1], func(track auricle.Track, _ int) string {
		return track.URI
	})
	return auricle.TrackBlock{Service: service, URIs: uris, StartIndex: start}
}

// BlockTracks returns the contiguous same-service run starting at
// startIndex as full entries, for batched backend handoff.
func (q *Queue) BlockTracks(startIndex int) (string, []auricle.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if startIndex < 0 || startIndex >= len(q.items) {
		return "", nil
	}
	service := q.items[startIndex].Service
	end := startIndex
	for end < len(q.items)-1 && q.items[end+1].Service == service {
		end++
	}
	tracks := make([]auricle.Track, end+1-startIndex)
	copy(tracks, q.items[startIndex:end+1])
	return service, tracks
}

// IndexOfID returns the position of the entry with the given identity.
func (q *Queue) IndexOfID(id string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" {
		return 0, false
	}
	for i, item := range q.items {
		if item.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Flush forces any pending debounced save to disk now.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.saveTimer != nil {
		q.saveTimer.Stop()
		q.saveTimer = nil
	}
	q.mu.Unlock()
	q.persist()
}

func (q *Queue) snapshotLocked() []auricle.Track {
	items := make([]auricle.Track, len(q.items))
	copy(items, q.items)
	return items
}

// scheduleSaveLocked debounces persistence: the write fires once the
// mutation burst settles and always reflects the latest state.
func (q *Queue) scheduleSaveLocked() {
	if q.config.PersistPath == "" {
		return
	}
	if q.saveTimer != nil {
		q.saveTimer.Reset(q.config.SaveDebounce)
		return
	}
	q.saveTimer = time.AfterFunc(q.config.SaveDebounce, func() {
		q.mu.Lock()
		q.saveTimer = nil
		q.mu.Unlock()
		q.persist()
	})
}

func (q *Queue) persist() {
	q.mu.Lock()
	items := q.snapshotLocked()
	q.mu.Unlock()

	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		q.log.Warn("cannot marshal queue", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(q.config.PersistPath), 0o755); err != nil {
		q.log.Warn("cannot create queue directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(q.config.PersistPath, payload, 0o644); err != nil {
		q.log.Warn("cannot save queue to disk", zap.Error(err))
	}
}

func (q *Queue) load() {
	if q.config.PersistPath == "" {
		return
	}
	payload, err := os.ReadFile(q.config.PersistPath)
	if err != nil {
		q.log.Info("cannot read play queue from file", zap.Error(err))
		return
	}
	var items []auricle.Track
	if err := json.Unmarshal(payload, &items); err != nil {
		q.log.Warn("corrupt queue file, starting empty", zap.Error(err))
		return
	}
	q.log.Info("reloading queue from file", zap.Int("items", len(items)))
	q.items = items
}
