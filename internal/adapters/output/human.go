package output

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case auricle.State:
		return printState(data)
	case []auricle.Track:
		return printQueue(data)
	case auricle.ReplyEnvelope:
		return printReply(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printState(state auricle.State) error {
	item := strings.TrimSpace(fmt.Sprintf("%s - %s", state.Artist, state.Title))
	item = strings.TrimPrefix(item, "- ")
	if item == "" {
		item = state.URI
	}

	volume := fmt.Sprintf("vol %d%%", state.Volume)
	if state.Mute {
		volume = "muted"
	}

	line := strings.TrimSpace(fmt.Sprintf("[%s]  %s  %s  %s",
		state.Status, item, formatPosition(state.Seek, state.Duration), volume))
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		return err
	}

	var modes []string
	if state.Random {
		modes = append(modes, "random")
	}
	if state.RepeatSingle {
		modes = append(modes, "repeat-single")
	} else if state.Repeat {
		modes = append(modes, "repeat")
	}
	if state.Consume {
		modes = append(modes, "consume")
	}
	if state.StopAfterCurrent {
		modes = append(modes, "stop-after-current")
	}
	if len(modes) > 0 {
		if _, err := fmt.Fprintf(os.Stdout, "modes: %s\n", strings.Join(modes, " ")); err != nil {
			return err
		}
	}

	if state.Service != "" {
		_, err := fmt.Fprintf(os.Stdout, "service %s  position %d  updated %s\n",
			state.Service, state.Position, time.Unix(state.Updated, 0).Format(time.RFC3339))
		return err
	}
	return nil
}

func printQueue(items []auricle.Track) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "INDEX\tTITLE\tARTIST\tALBUM\tSERVICE\tLEN"); err != nil {
		return err
	}
	for i, item := range items {
		title := item.Name
		if title == "" {
			title = item.URI
		}
		_, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i, title, item.Artist, item.Album, item.Service, formatDuration(item.Duration))
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printReply(reply auricle.ReplyEnvelope) error {
	if reply.Err != nil {
		_, err := fmt.Fprintf(os.Stdout, "error [%s] %s\n", reply.Err.Code, reply.Err.Message)
		return err
	}
	_, err := fmt.Fprintln(os.Stdout, "ok")
	return err
}

func formatPosition(seekMS int64, durationSec int) string {
	if durationSec <= 0 {
		return formatDuration(int(seekMS / 1000))
	}
	return fmt.Sprintf("%s/%s", formatDuration(int(seekMS/1000)), formatDuration(durationSec))
}

func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
