package processors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverFramesParsesTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame_000000.jpg")
	writeFile(t, dir, "frame_000005.jpg")
	writeFile(t, dir, "frame_000010.jpg")
	writeFile(t, dir, "notes.txt") // not an image, ignored

	e := NewFrameExtractor(zap.NewNop())
	frames, err := e.discoverFrames(dir, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	wantTS := []int{0, 5, 10}
	for i, f := range frames {
		if f.TimestampSec != wantTS[i] {
			t.Errorf("frame %d timestamp = %d, want %d", i, f.TimestampSec, wantTS[i])
		}
		if f.FrameNumber != i {
			t.Errorf("frame %d number = %d, want %d", i, f.FrameNumber, i)
		}
	}
}

func TestDiscoverFramesFallbackTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shot_a.png")
	writeFile(t, dir, "shot_b.png")
	writeFile(t, dir, "shot_c.png")

	e := NewFrameExtractor(zap.NewNop())
	frames, err := e.discoverFrames(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	wantTS := []int{0, 4, 8}
	for i, f := range frames {
		if f.TimestampSec != wantTS[i] {
			t.Errorf("frame %d timestamp = %d, want %d (index * interval)", i, f.TimestampSec, wantTS[i])
		}
	}
}

func TestDiscoverFramesSortedByName(t *testing.T) {
	dir := t.TempDir()
	// create out of order on purpose
	writeFile(t, dir, "frame_000010.jpg")
	writeFile(t, dir, "frame_000002.jpg")
	writeFile(t, dir, "frame_000006.jpg")

	e := NewFrameExtractor(zap.NewNop())
	frames, err := e.discoverFrames(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampSec < frames[i-1].TimestampSec {
			t.Errorf("frames not ordered by timestamp: %v then %v", frames[i-1], frames[i])
		}
	}
}

func TestDiscoverFramesMissingDir(t *testing.T) {
	e := NewFrameExtractor(zap.NewNop())
	frames, err := e.discoverFrames(filepath.Join(t.TempDir(), "nope"), 5)
	if err != nil {
		t.Fatalf("missing dir should not error, got %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("got %d frames for missing dir, want 0", len(frames))
	}
}

func TestExtractOrDiscoverUsesExistingFrames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame_000000.jpg")
	writeFile(t, dir, "frame_000003.jpg")

	e := NewFrameExtractor(zap.NewNop())
	// video path does not exist: if the decoder were invoked this would fail
	frames, err := e.ExtractOrDiscover(context.Background(), "/does/not/exist.mp4", dir, 3)
	if err != nil {
		t.Fatalf("expected discovery to skip the decoder, got %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("got %d frames, want 2", len(frames))
	}
}

func TestExtractOrDiscoverMissingVideo(t *testing.T) {
	e := NewFrameExtractor(zap.NewNop())
	_, err := e.ExtractOrDiscover(context.Background(), "/does/not/exist.mp4", t.TempDir(), 3)
	if err == nil {
		t.Fatal("expected an error for a missing video with no existing frames")
	}
}

func TestFrameTimestamp(t *testing.T) {
	cases := []struct {
		name     string
		idx      int
		interval int
		want     int
	}{
		{"frame_000042.jpg", 0, 5, 42},
		{"frame_000000.png", 3, 5, 0},
		{"random.jpg", 3, 5, 15},
		{"frame_abc.jpg", 2, 4, 8},
	}
	for _, c := range cases {
		if got := frameTimestamp(c.name, c.idx, c.interval); got != c.want {
			t.Errorf("frameTimestamp(%q, %d, %d) = %d, want %d", c.name, c.idx, c.interval, got, c.want)
		}
	}
}
