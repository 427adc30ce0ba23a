package app

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{text: "/start", want: "start", ok: true},
		{text: "/joke", want: "joke", ok: true},
		{text: "/JOKE", want: "joke", ok: true},
		{text: "/news@SomeBot", want: "news", ok: true},
		{text: "  /stop extra args  ", want: "stop", ok: true},
		{text: "hello there", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			got, ok := parseCommand(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("parseCommand(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}
