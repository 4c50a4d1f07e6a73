package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		major uint16
		minor uint16
	}{
		{"1.0", 1, 0},
		{"1.1", 1, 1},
		{"2.0", 2, 0},
		{"10.23", 10, 23},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v.Major != tt.major {
				t.Errorf("Major = %d, want %d", v.Major, tt.major)
			}
			if v.Minor != tt.minor {
				t.Errorf("Minor = %d, want %d", v.Minor, tt.minor)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"abc",
		"1.0.0",
		"1.x",
		"-1.0",
		".1",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	v := Current()
	if v.String() != Protocol {
		t.Errorf("Current().String() = %q, want %q", v.String(), Protocol)
	}
	if v.MajorString() != "1" {
		t.Errorf("MajorString() = %q, want %q", v.MajorString(), "1")
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.0", "1.0", true},
		{"1.0", "1.7", true},
		{"1.0", "2.0", false},
	}

	for _, tt := range tests {
		a, _ := Parse(tt.a)
		b, _ := Parse(tt.b)
		if got := a.Compatible(b); got != tt.want {
			t.Errorf("%s.Compatible(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseMajor(t *testing.T) {
	if m, err := ParseMajor("3"); err != nil || m != 3 {
		t.Errorf("ParseMajor(3) = %d, %v", m, err)
	}
	for _, s := range []string{"", "x", "1.0", "-1", "70000"} {
		if _, err := ParseMajor(s); err == nil {
			t.Errorf("ParseMajor(%q) should return error", s)
		}
	}
}

func TestString(t *testing.T) {
	want := "tcptransfer dev (protocol 1.0)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
