package song

import (
	"testing"
	"time"
)

func TestProgramsAt_BeforeAnyEvent(t *testing.T) {
	m := BuildProgramMap([]Track{{Programs: []ProgramEvent{{Channel: 0, Timestamp: time.Second, Program: 7}}}}, DefaultPrograms)

	got := m.ProgramsAt(500 * time.Millisecond)
	for ch, p := range got {
		if p != 0 {
			t.Errorf("channel %d = %d, want 0", ch, p)
		}
	}
}

func TestProgramsAt_EmptyMap(t *testing.T) {
	m := BuildProgramMap(nil, DefaultPrograms)
	if got := m.ProgramsAt(time.Hour); got != DefaultPrograms {
		t.Errorf("ProgramsAt = %v, want defaults", got)
	}
	if len(m.Buckets()) != 0 {
		t.Errorf("expected no buckets")
	}
}

func TestProgramsAt_CumulativeSnapshots(t *testing.T) {
	tracks := []Track{
		{Programs: []ProgramEvent{
			{Channel: 0, Timestamp: 0, Program: 1},
			{Channel: 0, Timestamp: 2 * time.Second, Program: 3},
		}},
		{Programs: []ProgramEvent{
			{Channel: 4, Timestamp: time.Second, Program: 25},
		}},
	}
	m := BuildProgramMap(tracks, DefaultPrograms)

	if n := len(m.Buckets()); n != 3 {
		t.Fatalf("expected 3 buckets, got %d", n)
	}

	tests := []struct {
		at       time.Duration
		ch0, ch4 uint8
	}{
		{0, 1, 0},
		{999 * time.Millisecond, 1, 0},
		{time.Second, 1, 25},
		{2 * time.Second, 3, 25},
		{time.Hour, 3, 25},
	}
	for _, tt := range tests {
		got := m.ProgramsAt(tt.at)
		if got[0] != tt.ch0 || got[4] != tt.ch4 {
			t.Errorf("ProgramsAt(%v): ch0=%d ch4=%d, want %d %d", tt.at, got[0], got[4], tt.ch0, tt.ch4)
		}
	}
}

func TestBuildProgramMap_SameTimestampDifferentChannels(t *testing.T) {
	tracks := []Track{
		{Programs: []ProgramEvent{{Channel: 0, Timestamp: 0, Program: 10}}},
		{Programs: []ProgramEvent{{Channel: 1, Timestamp: 0, Program: 20}}},
	}
	m := BuildProgramMap(tracks, DefaultPrograms)

	if n := len(m.Buckets()); n != 1 {
		t.Fatalf("expected one bucket, got %d", n)
	}
	got := m.ProgramsAt(0)
	if got[0] != 10 || got[1] != 20 {
		t.Errorf("ProgramsAt(0) = %v", got)
	}
}

func TestBuildProgramMap_Collisions(t *testing.T) {
	t.Run("lowest track index wins", func(t *testing.T) {
		m := BuildProgramMap([]Track{
			{Programs: []ProgramEvent{{Channel: 2, Timestamp: time.Second, Program: 8}}},
			{Programs: []ProgramEvent{{Channel: 2, Timestamp: time.Second, Program: 9}}},
		}, DefaultPrograms)
		if got := m.ProgramsAt(time.Second)[2]; got != 8 {
			t.Errorf("program = %d, want 8", got)
		}
	})

	t.Run("later event in a track wins", func(t *testing.T) {
		m := BuildProgramMap([]Track{
			{Programs: []ProgramEvent{
				{Channel: 2, Timestamp: time.Second, Program: 8},
				{Channel: 2, Timestamp: time.Second, Program: 9},
			}},
		}, DefaultPrograms)
		if got := m.ProgramsAt(time.Second)[2]; got != 9 {
			t.Errorf("program = %d, want 9", got)
		}
	})
}

func TestBuildProgramMap_CustomDefaults(t *testing.T) {
	var defaults Programs
	defaults[3] = 42
	m := BuildProgramMap([]Track{{Programs: []ProgramEvent{{Channel: 0, Timestamp: time.Second, Program: 1}}}}, defaults)

	if got := m.ProgramsAt(0)[3]; got != 42 {
		t.Errorf("default not used before first bucket: %d", got)
	}
	if got := m.ProgramsAt(time.Second); got[3] != 42 || got[0] != 1 {
		t.Errorf("snapshot lost defaults: %v", got)
	}
}
