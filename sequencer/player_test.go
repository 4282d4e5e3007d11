package sequencer

import (
	"slices"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gitlab.com/gomidi/midi/v2"
)

func countNotes(events []emitted) (on, off int) {
	for _, e := range events {
		msg := midi.Message(e.msg)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			on++
		case msg.GetNoteEnd(&ch, &key):
			off++
		}
	}
	return on, off
}

func TestPlayer_SingleUpdateEmitsEverything(t *testing.T) {
	s := scenarioSong()
	p := NewPlayer(s.Tracks, 0)

	if p.Length() != 480*time.Millisecond {
		t.Fatalf("Length = %v, want 480ms", p.Length())
	}

	got := record(p.Update(p.Length()))
	if len(got) != 8 {
		t.Fatalf("expected 8 events, got %d", len(got))
	}
	if on, off := countNotes(got); on != 4 || off != 4 {
		t.Errorf("on=%d off=%d", on, off)
	}
	if more := p.Update(time.Second); len(more) != 0 {
		t.Errorf("events emitted twice: %d", len(more))
	}
}

func TestPlayer_SmallStepsEmitSameEvents(t *testing.T) {
	s := scenarioSong()

	whole := record(NewPlayer(s.Tracks, 0).Update(480 * time.Millisecond))

	p := NewPlayer(s.Tracks, 0)
	var stepped []emitted
	for i := 0; i < 480; i++ {
		stepped = append(stepped, record(p.Update(time.Millisecond))...)
	}

	if !slices.Equal(whole, stepped) {
		t.Errorf("1ms steps differ from a single update:\n%v\n%v", whole, stepped)
	}
}

func TestPlayer_LeadInDelaysEvents(t *testing.T) {
	s := scenarioSong()
	p := NewPlayer(s.Tracks, 3*time.Second)

	if got := p.Update(3*time.Second - time.Millisecond); len(got) != 0 {
		t.Fatalf("events during lead in: %d", len(got))
	}
	if got := p.Update(time.Millisecond); len(got) != 1 {
		t.Fatalf("expected the first note on at the end of the lead in, got %d", len(got))
	}
	if p.SongTime() != 0 {
		t.Errorf("SongTime = %v, want 0", p.SongTime())
	}
	if p.Length() != 3*time.Second+480*time.Millisecond {
		t.Errorf("Length = %v", p.Length())
	}
}

func TestPlayer_PauseResume(t *testing.T) {
	s := scenarioSong()
	p := NewPlayer(s.Tracks, 0)

	p.Pause()
	if !p.IsPaused() {
		t.Fatal("expected paused")
	}
	if got := p.Update(time.Second); got != nil {
		t.Errorf("paused player emitted %d events", len(got))
	}
	if p.Time() != 0 {
		t.Errorf("paused player advanced to %v", p.Time())
	}

	p.Resume()
	if got := p.Update(0); len(got) != 1 {
		t.Errorf("expected the note on at 0 after resume, got %d", len(got))
	}
}

func TestPlayer_SeekClamps(t *testing.T) {
	s := scenarioSong()
	p := NewPlayer(s.Tracks, time.Second)

	p.SetTime(-5 * time.Second)
	if p.Time() != 0 {
		t.Errorf("negative seek: %v", p.Time())
	}

	p.SetTime(time.Hour)
	if p.Time() != p.Length() || !p.IsFinished() {
		t.Errorf("past end seek: %v finished=%v", p.Time(), p.IsFinished())
	}

	p.SetTime(500 * time.Millisecond)
	p.Rewind(time.Second)
	if p.Time() != 0 {
		t.Errorf("rewind below zero: %v", p.Time())
	}

	p.Rewind(-200 * time.Millisecond)
	if p.Time() != 200*time.Millisecond {
		t.Errorf("negative rewind moves forward, got %v", p.Time())
	}

	p.SetPercentage(2)
	if p.Percentage() != 1 {
		t.Errorf("percentage = %v", p.Percentage())
	}
	p.SetPercentage(-1)
	if p.Percentage() != 0 {
		t.Errorf("percentage = %v", p.Percentage())
	}
}

func TestPlayer_SeekMatchesReplay(t *testing.T) {
	s := busySong()
	base := NewPlayer(s.Tracks, 2*time.Second)

	for _, pct := range []float64{0, 0.1, 0.25, 0.5, 0.77, 1} {
		target := time.Duration(pct * float64(base.Length()))

		seeked := NewPlayer(s.Tracks, 2*time.Second)
		seeked.Update(123 * time.Millisecond)
		seeked.SetTime(target)

		replayed := NewPlayer(s.Tracks, 2*time.Second)
		for replayed.Time() < target {
			step := min(7*time.Millisecond, target-replayed.Time())
			replayed.Update(step)
		}

		if !slices.Equal(seeked.cursors, replayed.cursors) {
			t.Errorf("at %v: cursors %v, replay %v", target, seeked.cursors, replayed.cursors)
		}
		if seeked.Time() != target {
			t.Errorf("Time = %v, want %v", seeked.Time(), target)
		}
	}
}

func TestPlayer_SeekIsIdempotent(t *testing.T) {
	s := busySong()
	want := playAll(NewPlayer(s.Tracks, time.Second), 10*time.Millisecond)

	p := NewPlayer(s.Tracks, time.Second)
	p.Update(1500 * time.Millisecond)
	p.SetPercentage(0.5)
	p.Update(300 * time.Millisecond)
	p.SetPercentage(0)

	if got := playAll(p, 10*time.Millisecond); !slices.Equal(got, want) {
		t.Errorf("events after seeking to 50%% then 0%% differ: got %d want %d", len(got), len(want))
	}
}

func TestPlayer_EmptyTrackIsInert(t *testing.T) {
	s := busySong()
	p := NewPlayer(s.Tracks, 0)
	p.Update(p.Length())

	last := len(s.Tracks) - 1
	if p.cursors[last] != 0 {
		t.Errorf("empty track cursor moved to %d", p.cursors[last])
	}
}

func TestPlayer_EmptySong(t *testing.T) {
	p := NewPlayer(nil, 0)
	if !p.IsFinished() || p.Percentage() != 1 {
		t.Errorf("empty song: finished=%v pct=%v", p.IsFinished(), p.Percentage())
	}
	if got := p.Update(time.Second); len(got) != 0 {
		t.Errorf("empty song emitted %d events", len(got))
	}
}

func TestPlayer_PerTrackOrder(t *testing.T) {
	s := busySong()
	p := NewPlayer(s.Tracks, 0)

	lastAt := map[int]time.Duration{}
	for _, e := range p.Update(p.Length()) {
		if e.Timestamp < lastAt[e.TrackID] {
			t.Fatalf("track %d went back in time at %v", e.TrackID, e.Timestamp)
		}
		lastAt[e.TrackID] = e.Timestamp
	}
}

func TestPlayer_AtMostOnceProperty(t *testing.T) {
	s := busySong()
	total := 0
	for _, tr := range s.Tracks {
		total += len(tr.Events)
	}
	want := record(NewPlayer(s.Tracks, 0).Update(time.Hour))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("any step sizes deliver every event exactly once", prop.ForAll(
		func(steps []int) bool {
			p := NewPlayer(s.Tracks, 0)
			var got []emitted
			for _, ms := range steps {
				got = append(got, record(p.Update(time.Duration(ms)*time.Microsecond))...)
			}
			got = append(got, record(p.Update(time.Hour))...)
			if len(got) != total {
				return false
			}
			// Per track order must match a single update.
			for track := range s.Tracks {
				if !slices.Equal(filterTrack(got, track), filterTrack(want, track)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 400_000)),
	))

	properties.TestingRun(t)
}

func filterTrack(events []emitted, track int) []emitted {
	var out []emitted
	for _, e := range events {
		if e.track == track {
			out = append(out, e)
		}
	}
	return out
}
