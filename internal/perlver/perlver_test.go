package perlver

import "testing"

func TestSatisfies(t *testing.T) {
	tests := []struct {
		have string
		want string
		ok   bool
	}{
		{"1.0", "", true},
		{"1.0", "0", true},
		{"1.0", "1.0", true},
		{"2.0", "1.0", true},
		{"0.5", "1.0", false},
		{"1.62", "1.4602", true},
		{"1.4602", "1.62", false},
		{"1.52", "1.50", true},
		{"7.64", "6.76", true},
		{"1.9", "1.10", true},
		{"undef", "0", true},
		{"undef", "1.0", true}, // unknown bundled version satisfies any minimum
		{"", "0", true},
		{"", "1.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.have+"_"+tt.want, func(t *testing.T) {
			got := Satisfies(tt.have, tt.want)
			if got != tt.ok {
				t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.have, tt.want, got, tt.ok)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1", "1.0", 0},
		{"1.0", "1", 0},
		{"v1.0", "1.0", 0},
		// Decimal versions are numbers
		{"1.62", "1.4602", 1},
		{"1.5", "1.0501", 1},
		{"1.9", "1.10", 1},
		{"1.10", "1.1", 0},
		{"1.001", "1.1", -1},
		{"0.080001", "0.08", 1},
		{"2.005005", "2.005", 1},
		{"1.23_01", "1.23", 1},
		{"1.23_01", "1.2301", 0},
		// Dotted versions are tuples
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.4", -1},
		{"1.10.0", "1.9.0", 1},
		{"v1.2", "1.002", 0},
		{"1.2.3", "1.002003", 0},
		{"3.18.0", "3.007004", 1},
		{"3.007004", "3.18.0", -1},
		{"v5.36.0", "5.036", 0},
		// Suffixes and garbage
		{"1.23-TRIAL", "1.23", 0},
		{"", "0", 0},
		{"undef", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEpoch(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"5.006", "0:"},
		{"5.008", "0:"},
		{"5.008001", "0:"},
		{"5.6.1", "0:"},
		{"5.8", "1:"},
		{"5.8.1", "1:"},
		{"5.010", "0:"},
		{"5.10.1", "0:"},
		{"5.9", "1:"},
		{"6", "1:"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := Epoch(tt.version); got != tt.want {
				t.Errorf("Epoch(%q) = %q, want %q", tt.version, got, tt.want)
			}
		})
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"5.006", "5.008", "5.008"},
		{"5.010", "5.8.1", "5.010"},
		{"5.008", "5.006001", "5.008"},
		{"5.6", "5.010", "5.6"},
		{"1.0", "1", "1.0"},
	}
	for _, tt := range tests {
		if got := Max(tt.a, tt.b); got != tt.want {
			t.Errorf("Max(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
