package effects

import "testing"

func TestParseSafety(t *testing.T) {
	cases := []struct {
		in   string
		want SafetyClass
		ok   bool
	}{
		{"safe", SafetySafe, true},
		{"trusted", SafetyTrusted, true},
		{"unchecked", SafetyUnchecked, true},
		{"", SafetyUnchecked, false},
		{"Safe", SafetyUnchecked, false},
	}
	for _, tc := range cases {
		got, ok := ParseSafety(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseSafety(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseSafety(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMeetIsPointwise(t *testing.T) {
	a := Classification{Nothrow: true, AllocFree: true, Safety: SafetySafe}
	b := Classification{Nothrow: true, AllocFree: false, Safety: SafetyTrusted}

	got := Meet(a, b)
	want := Classification{Nothrow: true, AllocFree: false, Safety: SafetyTrusted}
	if got != want {
		t.Fatalf("Meet = %+v, want %+v", got, want)
	}
}

func TestMeetTopIsIdentity(t *testing.T) {
	points := []Classification{
		Top(),
		{Nothrow: false, AllocFree: false, Safety: SafetyUnchecked},
		{Nothrow: true, AllocFree: false, Safety: SafetyTrusted},
	}
	for _, c := range points {
		if got := Meet(Top(), c); got != c {
			t.Errorf("Meet(Top, %+v) = %+v, want unchanged", c, got)
		}
		if got := Meet(c, Top()); got != c {
			t.Errorf("Meet(%+v, Top) = %+v, want unchanged", c, got)
		}
	}
}

func TestMeetWeakestWins(t *testing.T) {
	// One unchecked callback drags the whole hook to unchecked.
	cls := Top()
	cls = Meet(cls, Classification{Nothrow: true, AllocFree: true, Safety: SafetySafe})
	cls = Meet(cls, Classification{Nothrow: true, AllocFree: true, Safety: SafetyUnchecked})
	if cls.Safety != SafetyUnchecked {
		t.Fatalf("Safety = %v, want unchecked", cls.Safety)
	}
	if !cls.Nothrow || !cls.AllocFree {
		t.Fatalf("boolean attributes changed unexpectedly: %+v", cls)
	}
}

func TestSatisfies(t *testing.T) {
	hook := Classification{Nothrow: true, AllocFree: false, Safety: SafetyTrusted}

	cases := []struct {
		demand Classification
		want   bool
	}{
		// The zero demand constrains nothing.
		{Classification{Safety: SafetyUnchecked}, true},
		{Classification{Nothrow: true, Safety: SafetyUnchecked}, true},
		{Classification{AllocFree: true, Safety: SafetyUnchecked}, false},
		{Classification{Safety: SafetyTrusted}, true},
		{Classification{Safety: SafetySafe}, false},
		{Classification{Nothrow: true, Safety: SafetyTrusted}, true},
	}
	for _, tc := range cases {
		if got := hook.Satisfies(tc.demand); got != tc.want {
			t.Errorf("(%s).Satisfies(%s) = %v, want %v", hook, tc.demand, got, tc.want)
		}
	}
}

func TestClassificationString(t *testing.T) {
	c := Classification{Nothrow: true, AllocFree: false, Safety: SafetyTrusted}
	if got := c.String(); got != "nothrow allocates trusted" {
		t.Fatalf("String = %q", got)
	}
	if got := Top().String(); got != "nothrow allocfree safe" {
		t.Fatalf("Top().String = %q", got)
	}
}
