package tasks

import "testing"

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2026-09-10", "2026-09-10"},
		{"2026-09-10T15:04:05Z", "2026-09-10"},
		{"2026-09-10T00:00:00.000Z", "2026-09-10"},
		{"", ""},
	}
	for _, c := range cases {
		if got := normalizeDate(c.in); got != c.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseDatePtr(t *testing.T) {
	if got, err := parseDatePtr(nil); got != nil || err != nil {
		t.Errorf("parseDatePtr(nil) = %v, %v", got, err)
	}
	empty := ""
	if got, err := parseDatePtr(&empty); got != nil || err != nil {
		t.Errorf("parseDatePtr(empty) = %v, %v", got, err)
	}
	stamp := "2026-09-10T15:04:05Z"
	got, err := parseDatePtr(&stamp)
	if err != nil || got == nil || *got != "2026-09-10" {
		t.Errorf("parseDatePtr(timestamp) = %v, %v", got, err)
	}
	for _, bad := range []string{"definitely-not-a-date", "2026-13-45", "10/09/2026"} {
		bad := bad
		if _, err := parseDatePtr(&bad); KindOf(err) != KindValidation {
			t.Errorf("parseDatePtr(%q): expected validation error, got %v", bad, err)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	empty := ""
	val := "x"
	if orNone(nil) != "None" || orNone(&empty) != "None" || orNone(&val) != "x" {
		t.Error("orNone placeholder wrong")
	}
	if orUnassigned(nil) != "Unassigned" || orUnassigned(&val) != "x" {
		t.Error("orUnassigned placeholder wrong")
	}
}

func TestPointerComparisons(t *testing.T) {
	a, b := "x", "x"
	c := "y"
	if !sameStringPtr(&a, &b) || sameStringPtr(&a, &c) || sameStringPtr(&a, nil) || !sameStringPtr(nil, nil) {
		t.Error("sameStringPtr wrong")
	}
	var i, j int64 = 7, 7
	var k int64 = 8
	if !sameInt64Ptr(&i, &j) || sameInt64Ptr(&i, &k) || sameInt64Ptr(nil, &i) || !sameInt64Ptr(nil, nil) {
		t.Error("sameInt64Ptr wrong")
	}
}
