package webradio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

type fakeStream struct {
	mu      sync.Mutex
	playing string
	stops   int
}

func (f *fakeStream) Play(url string, offsetMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = url
	return nil
}

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = ""
	f.stops++
	return nil
}

type sinkRecorder struct {
	mu       sync.Mutex
	statuses []auricle.BackendStatus
}

func (s *sinkRecorder) PushStatus(service string, status auricle.BackendStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *sinkRecorder) TrackEnded(service string) {}

const stationFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Night Jazz</title>
    <item>
      <title>Late Session</title>
      <enclosure url="http://cdn.example/late.mp3" type="audio/mpeg"/>
    </item>
    <item>
      <title>No Audio Here</title>
    </item>
  </channel>
</rss>`

func TestExplodeDirectStream(t *testing.T) {
	backend := NewBackend(zap.NewNop(), &fakeStream{}, nil, Config{})

	tracks, err := backend.ExplodeURI(context.Background(), auricle.Track{URI: "http://radio.example/live"})
	if err != nil {
		t.Fatalf("explode: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected single literal entry, got %d", len(tracks))
	}
	if tracks[0].Type != "webradio" || tracks[0].Service != ServiceName {
		t.Fatalf("unexpected entry: %+v", tracks[0])
	}
}

func TestExplodeFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(stationFeed))
	}))
	defer server.Close()

	backend := NewBackend(zap.NewNop(), &fakeStream{}, nil, Config{})
	tracks, err := backend.ExplodeURI(context.Background(), auricle.Track{URI: server.URL + "/stations.xml"})
	if err != nil {
		t.Fatalf("explode: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected enclosure-backed entries only, got %d", len(tracks))
	}
	if tracks[0].URI != "http://cdn.example/late.mp3" || tracks[0].Artist != "Night Jazz" {
		t.Fatalf("unexpected entry: %+v", tracks[0])
	}
}

func TestExplodeFeedFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	backend := NewBackend(zap.NewNop(), &fakeStream{}, nil, Config{})
	if _, err := backend.ExplodeURI(context.Background(), auricle.Track{URI: server.URL + "/stations.rss"}); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestPlayStopCycle(t *testing.T) {
	driver := &fakeStream{}
	sink := &sinkRecorder{}
	backend := NewBackend(zap.NewNop(), driver, sink, Config{})

	err := backend.ClearAddPlayTracks(context.Background(), []auricle.Track{
		{URI: "http://radio.example/live", Service: ServiceName, Type: "webradio"},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if driver.playing != "http://radio.example/live" {
		t.Fatalf("stream not started: %q", driver.playing)
	}

	if err := backend.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if driver.stops != 1 {
		t.Fatal("driver not stopped")
	}

	if len(sink.statuses) != 2 {
		t.Fatalf("expected play and stop reports, got %d", len(sink.statuses))
	}
	if *sink.statuses[0].Status != auricle.StatusPlay || *sink.statuses[1].Status != auricle.StatusStop {
		t.Fatalf("unexpected reports: %+v", sink.statuses)
	}
}

func TestPlayWithoutStation(t *testing.T) {
	backend := NewBackend(zap.NewNop(), &fakeStream{}, nil, Config{})
	if err := backend.Play(context.Background()); err == nil {
		t.Fatal("expected error with no station tuned")
	}
}

func TestIsFeedURI(t *testing.T) {
	cases := map[string]bool{
		"http://dir.example/stations.xml": true,
		"https://dir.example/feed/jazz":   true,
		"http://radio.example/live":       false,
		"mnt/music/a.flac":                false,
	}
	for uri, want := range cases {
		if got := isFeedURI(uri); got != want {
			t.Fatalf("%s: expected %v", uri, want)
		}
	}
}
