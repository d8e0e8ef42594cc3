package culture

import "testing"

func TestResolve_NegotiatesAcceptLanguage(t *testing.T) {
	s := Resolve("de-DE,de;q=0.9,en;q=0.5", "", "", "")
	if s.Locale != "de" {
		t.Fatalf("expected de, got %q", s.Locale)
	}
	if s.WeekStart != "monday" || s.TimeFormat != "24h" {
		t.Fatalf("unexpected conventions: %+v", s)
	}
}

func TestResolve_PinnedLocaleWinsOverHeader(t *testing.T) {
	s := Resolve("de-DE", "en-US", "", "")
	if s.Locale != "en-US" {
		t.Fatalf("expected en-US, got %q", s.Locale)
	}
	if s.WeekStart != "sunday" || s.TimeFormat != "12h" {
		t.Fatalf("expected US conventions, got %+v", s)
	}
}

func TestResolve_PortalOverridesConventions(t *testing.T) {
	s := Resolve("", "en-US", "monday", "24h")
	if s.WeekStart != "monday" {
		t.Fatalf("expected pinned monday, got %q", s.WeekStart)
	}
	if s.TimeFormat != "24h" {
		t.Fatalf("expected pinned 24h, got %q", s.TimeFormat)
	}
}

func TestResolve_FallbackWhenNothingMatches(t *testing.T) {
	s := Resolve("", "", "", "")
	if s.Locale != "en-US" {
		t.Fatalf("expected fallback en-US, got %q", s.Locale)
	}

	s = Resolve("zz-ZZ", "not-a-locale", "", "")
	if s.Locale == "" {
		t.Fatal("expected a locale even for junk input")
	}
}

func TestResolve_UnsupportedHeaderPicksClosest(t *testing.T) {
	// Austrian German is not in the supported set; base German is.
	s := Resolve("de-AT", "", "", "")
	if s.Locale != "de" {
		t.Fatalf("expected de for de-AT, got %q", s.Locale)
	}
}
