package player

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ExplodeCueFile parses a cue sheet sidecar file into one playable
// entry per TRACK, sharing the sheet's album and performer. Track
// offsets come from the INDEX 01 timestamps (mm:ss:ff, 75 frames per
// second).
func ExplodeCueFile(path string) ([]auricle.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var (
		album     string
		performer string
		audioFile string
		tracks    []auricle.Track
		current   *auricle.Track
	)

	flush := func() {
		if current != nil {
			tracks = append(tracks, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		keyword, rest := splitCueLine(line)

		switch keyword {
		case "FILE":
			name := unquoteCue(strings.TrimSuffix(rest, " WAVE"))
			audioFile = filepath.Join(filepath.Dir(path), name)
		case "TITLE":
			if current != nil {
				current.Name = unquoteCue(rest)
			} else {
				album = unquoteCue(rest)
			}
		case "PERFORMER":
			if current != nil {
				current.Artist = unquoteCue(rest)
			} else {
				performer = unquoteCue(rest)
			}
		case "TRACK":
			flush()
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return nil, fmt.Errorf("malformed TRACK line in %s", path)
			}
			number, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("malformed track number in %s: %w", path, err)
			}
			current = &auricle.Track{
				URI:         audioFile,
				Type:        "cue-track",
				Album:       album,
				Artist:      performer,
				TrackNumber: number,
			}
		case "INDEX":
			fields := strings.Fields(rest)
			if current != nil && len(fields) == 2 && fields[0] == "01" {
				offset, err := parseCueTimestamp(fields[1])
				if err != nil {
					return nil, fmt.Errorf("malformed INDEX in %s: %w", path, err)
				}
				current.OffsetMS = offset
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks in cue sheet %s", path)
	}
	return tracks, nil
}

func splitCueLine(line string) (string, string) {
	keyword, rest, _ := strings.Cut(line, " ")
	return strings.ToUpper(keyword), strings.TrimSpace(rest)
}

func unquoteCue(value string) string {
	return strings.Trim(strings.TrimSpace(value), `"`)
}

// parseCueTimestamp converts mm:ss:ff to milliseconds.
func parseCueTimestamp(value string) (int64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected mm:ss:ff, got %q", value)
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	frames, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	return int64(minutes)*60_000 + int64(seconds)*1_000 + int64(frames)*1000/75, nil
}
