package floorlabel

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []int{1, 7, 999, -1, -12, -99}
	for _, idx := range cases {
		label, err := Format(idx)
		if err != nil {
			t.Fatalf("Format(%d): %v", idx, err)
		}
		got, err := Parse(label)
		if err != nil {
			t.Fatalf("Parse(%q): %v", label, err)
		}
		if got != idx {
			t.Errorf("round trip %d -> %q -> %d", idx, label, got)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{"", "B", "0", "B0", "1000", "B100", "abc", "-5"}
	for _, label := range cases {
		if _, err := Parse(label); err == nil {
			t.Errorf("Parse(%q): expected error, got none", label)
		}
	}
}

func TestFormatInvalid(t *testing.T) {
	cases := []int{0, 1000, -100}
	for _, idx := range cases {
		if _, err := Format(idx); err == nil {
			t.Errorf("Format(%d): expected error, got none", idx)
		}
	}
}

func TestStepTowardSkipsZero(t *testing.T) {
	if got := StepToward(-1, 5); got != 1 {
		t.Errorf("StepToward(-1, 5) = %d, want 1", got)
	}
	if got := StepToward(1, -5); got != -1 {
		t.Errorf("StepToward(1, -5) = %d, want -1", got)
	}
}

func TestStepTowardNormal(t *testing.T) {
	if got := StepToward(3, 7); got != 4 {
		t.Errorf("StepToward(3, 7) = %d, want 4", got)
	}
	if got := StepToward(7, 3); got != 6 {
		t.Errorf("StepToward(7, 3) = %d, want 6", got)
	}
	if got := StepToward(5, 5); got != 5 {
		t.Errorf("StepToward(5, 5) = %d, want 5", got)
	}
}
