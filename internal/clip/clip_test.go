package clip

import "testing"

func TestParsePreference(t *testing.T) {
	cases := []struct {
		in   string
		want Preference
		ok   bool
	}{
		{"", PrefAny, true},
		{"any", PrefAny, true},
		{"text", PrefText, true},
		{"image", PrefImage, true},
		{"video", PrefAny, false},
		{"TEXT", PrefAny, false},
	}
	for _, tc := range cases {
		got, ok := ParsePreference(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParsePreference(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPreference_String(t *testing.T) {
	cases := map[Preference]string{
		PrefAny:   "any",
		PrefText:  "text",
		PrefImage: "image",
	}
	for pref, want := range cases {
		if got := pref.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", pref, got, want)
		}
	}
}
