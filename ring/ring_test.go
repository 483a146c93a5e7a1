package ring

import "testing"

func TestInsideEmptyArc(t *testing.T) {
	// P1: inside(k, a, a) == false for all k, a.
	for _, k := range []Key{0, 1, 5, Size - 1} {
		if Inside(k, 5, 5) {
			t.Errorf("Inside(%d, 5, 5) = true, want false", k)
		}
	}
}

func TestInsideComplementary(t *testing.T) {
	// P2: for a != b, exactly one of Inside(k, a, b), Inside(k, b, a)
	// holds for every k != a.
	a, b := Key(3), Key(10)
	for k := Key(0); k < 20; k++ {
		if k == a {
			continue
		}
		fwd := Inside(k, a, b)
		bwd := Inside(k, b, a)
		if fwd == bwd {
			t.Errorf("k=%d: Inside(k,a,b)=%v Inside(k,b,a)=%v, want exactly one true", k, fwd, bwd)
		}
	}
}

func TestInsideWraparound(t *testing.T) {
	// B1: inside(0, MAX_KEY-1, 1) == true.
	if !Inside(0, Size-1, 1) {
		t.Error("Inside(0, Size-1, 1) = false, want true")
	}
}

func TestInsideScenario6(t *testing.T) {
	cases := []struct {
		key, left, right Key
		want             bool
	}{
		{5, 10, 3, false},
		{5, 3, 10, true},
		{5, 3, 5, false},
		{5, 5, 10, true},
	}
	for _, c := range cases {
		if got := Inside(c.key, c.left, c.right); got != c.want {
			t.Errorf("Inside(%d, %d, %d) = %v, want %v", c.key, c.left, c.right, got, c.want)
		}
	}
}

func TestInsideOrdinary(t *testing.T) {
	if !Inside(5, 3, 8) {
		t.Error("5 should be inside [3, 8)")
	}
	if Inside(8, 3, 8) {
		t.Error("8 should not be inside [3, 8), right bound excluded")
	}
	if !Inside(3, 3, 8) {
		t.Error("3 should be inside [3, 8), left bound included")
	}
}

func TestStart(t *testing.T) {
	self := Key(10)
	if got := Start(self, 0); got != 11 {
		t.Errorf("Start(10, 0) = %d, want 11", got)
	}
	if got := Start(self, 2); got != 14 {
		t.Errorf("Start(10, 2) = %d, want 14", got)
	}
}

func TestMaskWraps(t *testing.T) {
	if got := Mask(Size + 5); got != 5 {
		t.Errorf("Mask(Size+5) = %d, want 5", got)
	}
}
