package irc

import "testing"

func TestNameRoundTrip(t *testing.T) {
	names := []string{"lobby", "dev corner", "  padded  ", "a b c d", "", "already\u00a0encoded"}
	for _, name := range names {
		enc := EncodeName(name)
		if got := DecodeName(enc); got != DecodeName(name) {
			t.Fatalf("round trip of %q: got %q", name, got)
		}
		for _, r := range enc {
			if r == ' ' {
				t.Fatalf("encoded %q still contains a space", enc)
			}
		}
	}
	if got := DecodeName(EncodeName("dev corner")); got != "dev corner" {
		t.Fatalf("expected original back, got %q", got)
	}
	if got := DecodeName(EncodeName("no\u00a0break")); got != "no break" {
		t.Fatalf("expected the stand-in to decode as a space, got %q", got)
	}
}

func TestChannelNames(t *testing.T) {
	if got := channelName("dev corner"); got != "#dev\u00a0corner" {
		t.Fatalf("unexpected channel %q", got)
	}
	if got := roomName("#dev\u00a0corner"); got != "dev corner" {
		t.Fatalf("unexpected room %q", got)
	}
}
