package lyrics_test

import (
	"slices"
	"testing"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/lyrics"
)

func TestTracker(t *testing.T) {
	t.Parallel()

	tr := audio.NewRemoteTransport()
	lines := []lyrics.Line{timed(0, 1000), timed(1000, 2000), timed(3000, 4000)}

	var changes []int
	tracker := lyrics.NewTracker(tr, lines, func(idx int) { changes = append(changes, idx) })
	defer tracker.Stop()

	for _, pos := range []int64{100, 200, 1500, 1600, 2500, 3500} {
		tr.ReportTime(pos)
	}
	tr.ReportEnded()

	// Initial position 0 activates line 0; repeated positions inside a line
	// produce no callback.
	want := []int{0, 1, -1, 2, -1}
	if !slices.Equal(changes, want) {
		t.Errorf("changes = %v, want %v", changes, want)
	}
	if tracker.Active() != -1 {
		t.Errorf("Active = %d, want -1 after end", tracker.Active())
	}
}

func TestTracker_Stop(t *testing.T) {
	t.Parallel()

	tr := audio.NewRemoteTransport()
	calls := 0
	tracker := lyrics.NewTracker(tr, []lyrics.Line{timed(10, 20)}, func(int) { calls++ })
	tracker.Stop()
	tracker.Stop()

	tr.ReportTime(15)
	if calls != 0 {
		t.Errorf("callback fired %d times after Stop", calls)
	}
}
