package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{Seq: 4821})
	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if decoded == nil || decoded.Seq != 4821 {
		t.Fatalf("unexpected cursor %+v", decoded)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %+v err=%v", c, err)
	}
	for _, raw := range []string{"%%%", "c2VxfGFiYw", "Zm9vfDE"} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default, got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 10); got != MaxLimit {
		t.Fatalf("expected max, got %d", got)
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
}
