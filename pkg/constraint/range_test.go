package constraint

import "testing"

func TestRangeAllows(t *testing.T) {
	tests := []struct {
		expr    string
		version string
		pre     bool
		want    bool
	}{
		{"^1.2", "1.9.9", false, true},
		{"^1.2", "2.0.0", false, false},
		{">=1.2.0,<1.3.0", "1.2.5", false, true},
		{"~2.7", "2.7.13", false, true},
		{"~2.7", "3.6.0", false, false},
		{"~=1.4", "1.9", false, true},
		{"~=1.4.5", "1.5.0", false, false},
		{"==1.2.*", "1.2.7", false, true},
		{"!=2.7.6", "2.7.6", false, false},
		{"*", "4.0.0", false, true},
		{">=1.0", "2.0.0b1", false, false},
		{">=1.0", "2.0.0b1", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.version, func(t *testing.T) {
			r, err := ParseRange(tt.expr)
			if err != nil {
				t.Fatalf("ParseRange(%q) error: %v", tt.expr, err)
			}
			v, err := Coerce(tt.version)
			if err != nil {
				t.Fatalf("Coerce(%q) error: %v", tt.version, err)
			}
			if got := r.Allows(v, tt.pre); got != tt.want {
				t.Errorf("Allows(%s) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1", "1.0.0"},
		{"1.2", "1.2.0"},
		{"2017.2", "2017.2.0"},
		{"1.2.3b1", "1.2.3-b1"},
		{"1.2.3.4", "1.2.3"},
	}

	for _, tt := range tests {
		v, err := Coerce(tt.input)
		if err != nil {
			t.Errorf("Coerce(%q) error: %v", tt.input, err)
			continue
		}
		if got := v.String(); got != tt.want {
			t.Errorf("Coerce(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := Coerce("not-a-version"); err == nil {
		t.Error("Coerce(not-a-version) should fail")
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		version string
		ranges  []string
		want    bool
	}{
		{"2.7.13", []string{"~2.7"}, true},
		{"3.6.1", []string{"~2.7"}, false},
		{"3.6.1", []string{"~2.7", ">=3.4"}, true},
		{"3.6.1", []string{"*"}, true},
	}

	for _, tt := range tests {
		got, err := MatchesAny(tt.version, tt.ranges)
		if err != nil {
			t.Fatalf("MatchesAny(%q, %v) error: %v", tt.version, tt.ranges, err)
		}
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.version, tt.ranges, got, tt.want)
		}
	}
}

func TestIsRestricted(t *testing.T) {
	if IsRestricted(nil) {
		t.Error("IsRestricted(nil) = true, want false")
	}
	if IsRestricted([]string{"*"}) {
		t.Error("IsRestricted([*]) = true, want false")
	}
	if !IsRestricted([]string{"~2.7", ">=3.4"}) {
		t.Error("IsRestricted([~2.7 >=3.4]) = false, want true")
	}
}
