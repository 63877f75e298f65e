package procstate

import (
	"errors"
	"testing"
)

func TestFromCode(t *testing.T) {
	cases := map[string]State{
		"R": Running,
		"S": Sleeping,
		"D": WaitingOnIO,
		"Z": Zombie,
		"T": Stopped,
		"t": TracingStop,
		"I": Idle,
		"X": Dead,
		"W": Unknown,
		"":  Unknown,
	}
	for code, want := range cases {
		if got := FromCode(code); got != want {
			t.Fatalf("FromCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestParseStatusLine(t *testing.T) {
	cases := []struct {
		line string
		want State
	}{
		{"State:\tS (sleeping)", Sleeping},
		{"State:\tR (running)", Running},
		{"State:\tZ (zombie)", Zombie},
		{"State:\tD (disk sleep)", WaitingOnIO},
		{"State:\tT (stopped)", Stopped},
		{"State:\tQ (quantum)", Unknown},
		{"State:\t(sleeping)", Sleeping},
	}
	for _, c := range cases {
		got, err := ParseStatusLine(c.line)
		if err != nil {
			t.Fatalf("ParseStatusLine(%q) error: %v", c.line, err)
		}
		if got != c.want {
			t.Fatalf("ParseStatusLine(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestParseStatusLine_Malformed(t *testing.T) {
	for _, line := range []string{"", "Name:\tsleep", "State:", "State:   "} {
		if _, err := ParseStatusLine(line); !errors.Is(err, ErrMalformedStatus) {
			t.Fatalf("ParseStatusLine(%q) err = %v, want ErrMalformedStatus", line, err)
		}
	}
}

func TestStateString(t *testing.T) {
	if Sleeping.String() != "sleeping" || WaitingOnIO.String() != "waiting on io" {
		t.Fatalf("unexpected names: %q %q", Sleeping, WaitingOnIO)
	}
	if State(99).String() != "unknown" {
		t.Fatalf("out of range state should render unknown")
	}
}
