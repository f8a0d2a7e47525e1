package core

import (
	"reflect"
	"testing"
)

func TestGeneratePatchesCount(t *testing.T) {
	sizes := [][2]int{{640, 480}, {1920, 1080}, {641, 481}, {2, 2}, {3, 5}, {100, 1}}
	for _, s := range sizes {
		patches := GeneratePatches(s[0], s[1])
		if len(patches) != 13 {
			t.Errorf("GeneratePatches(%d, %d) returned %d patches, want 13", s[0], s[1], len(patches))
		}
	}
}

func TestGeneratePatchesDeterministic(t *testing.T) {
	a := GeneratePatches(1279, 717)
	b := GeneratePatches(1279, 717)
	if !reflect.DeepEqual(a, b) {
		t.Error("two calls with the same dimensions returned different patches")
	}
}

func TestGeneratePatches640x480(t *testing.T) {
	patches := GeneratePatches(640, 480)

	want := map[string]PatchSpec{
		"full":         {PatchType: "full", X: 0, Y: 0, Width: 640, Height: 480},
		"top-left":     {PatchType: "top-left", X: 0, Y: 0, Width: 320, Height: 240},
		"top-right":    {PatchType: "top-right", X: 320, Y: 0, Width: 320, Height: 240},
		"bottom-left":  {PatchType: "bottom-left", X: 0, Y: 240, Width: 320, Height: 240},
		"bottom-right": {PatchType: "bottom-right", X: 320, Y: 240, Width: 320, Height: 240},
	}
	byType := map[string]PatchSpec{}
	for _, p := range patches {
		byType[p.PatchType] = p
	}
	for name, w := range want {
		if got := byType[name]; got != w {
			t.Errorf("%s = %+v, want %+v", name, got, w)
		}
	}

	// the eight half-quadrant splits are all 160 wide at this size
	splits := 0
	for _, p := range patches {
		if _, ok := want[p.PatchType]; ok {
			continue
		}
		splits++
		if p.Width != 160 || p.Height != 240 {
			t.Errorf("split %s is %dx%d, want 160x240", p.PatchType, p.Width, p.Height)
		}
	}
	if splits != 8 {
		t.Errorf("got %d half-quadrant splits, want 8", splits)
	}
}

func TestGeneratePatchesTilingExact(t *testing.T) {
	// quadrants must partition the frame and each quadrant's splits must
	// partition the quadrant, including odd dimensions
	for _, s := range [][2]int{{640, 480}, {641, 481}, {7, 3}, {1023, 767}} {
		w, h := s[0], s[1]
		patches := GeneratePatches(w, h)
		byType := map[string]PatchSpec{}
		for _, p := range patches {
			byType[p.PatchType] = p
		}

		covered := make([][]bool, h)
		for y := range covered {
			covered[y] = make([]bool, w)
		}
		for _, name := range []string{"top-left", "top-right", "bottom-left", "bottom-right"} {
			q := byType[name]
			for y := q.Y; y < q.Y+q.Height; y++ {
				for x := q.X; x < q.X+q.Width; x++ {
					if covered[y][x] {
						t.Fatalf("%dx%d: quadrant %s overlaps at (%d,%d)", w, h, name, x, y)
					}
					covered[y][x] = true
				}
			}
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !covered[y][x] {
					t.Fatalf("%dx%d: pixel (%d,%d) not covered by any quadrant", w, h, x, y)
				}
			}
		}

		for _, name := range []string{"top-left", "top-right", "bottom-left", "bottom-right"} {
			q := byType[name]
			l := byType[name+"-left"]
			r := byType[name+"-right"]
			if l.X != q.X || r.X != q.X+l.Width {
				t.Errorf("%dx%d: %s splits misaligned: left.X=%d right.X=%d", w, h, name, l.X, r.X)
			}
			if l.Width+r.Width != q.Width {
				t.Errorf("%dx%d: %s split widths %d+%d != quadrant width %d", w, h, name, l.Width, r.Width, q.Width)
			}
			if l.Height != q.Height || r.Height != q.Height {
				t.Errorf("%dx%d: %s split heights differ from quadrant", w, h, name)
			}
		}
	}
}

func TestGeneratePatchesZeroSafe(t *testing.T) {
	// caller contract violation, but must not panic or divide by zero
	patches := GeneratePatches(0, 0)
	if len(patches) != 13 {
		t.Errorf("got %d patches for 0x0, want 13", len(patches))
	}
}

func TestVectorID(t *testing.T) {
	cases := []struct {
		title string
		ts    int
		patch string
		want  string
	}{
		{"Blade Runner", 42, "full", "Blade_Runner_000042_full"},
		{"2001 A Space Odyssey", 0, "top-left-right", "2001_A_Space_Odyssey_000000_top-left-right"},
		{"Heat", 1234567, "bottom-right", "Heat_1234567_bottom-right"},
	}
	for _, c := range cases {
		if got := VectorID(c.title, c.ts, c.patch); got != c.want {
			t.Errorf("VectorID(%q, %d, %q) = %q, want %q", c.title, c.ts, c.patch, got, c.want)
		}
	}
}
