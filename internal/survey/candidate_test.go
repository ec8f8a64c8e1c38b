package survey

import (
	"strings"
	"testing"
)

func TestParseCandidate_Full(t *testing.T) {
	data := `{
		"name": "Laptop",
		"number": 1,
		"power": 200,
		"func_time": 480,
		"num_windows": 1,
		"window_1": [540, 1020],
		"func_cycle": 1,
		"fixed": "no",
		"occasional_use": 1.0,
		"wd_we_type": 2,
		"data_complete": true
	}`

	c, err := ParseCandidate([]byte(data))
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}

	if c.Name != "Laptop" {
		t.Errorf("name = %q, want Laptop", c.Name)
	}
	if c.Power == nil || *c.Power != 200 {
		t.Errorf("power = %v, want 200", c.Power)
	}
	if c.FuncTime == nil || *c.FuncTime != 480 {
		t.Errorf("func_time = %v, want 480", c.FuncTime)
	}
	if c.Windows[0] == nil || *c.Windows[0] != (TimeWindow{540, 1020}) {
		t.Errorf("window_1 = %v, want 540-1020", c.Windows[0])
	}
	if c.Windows[1] != nil || c.Windows[2] != nil {
		t.Errorf("expected unused window slots to stay nil")
	}
	if c.Fixed == nil || *c.Fixed {
		t.Errorf("fixed = %v, want false", c.Fixed)
	}
	if c.Update {
		t.Error("update should default to false")
	}
}

func TestParseCandidate_StringNumbers(t *testing.T) {
	// The NLU layer sometimes quotes numbers; they must still parse.
	data := `{"name": "TV", "number": "2", "power": "100", "func_time": "120", "occasional_use": "0.5"}`

	c, err := ParseCandidate([]byte(data))
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if c.Number == nil || *c.Number != 2 {
		t.Errorf("number = %v, want 2", c.Number)
	}
	if c.Power == nil || *c.Power != 100 {
		t.Errorf("power = %v, want 100", c.Power)
	}
	if c.OccasionalUse == nil || *c.OccasionalUse != 0.5 {
		t.Errorf("occasional_use = %v, want 0.5", c.OccasionalUse)
	}
}

func TestParseCandidate_MissingOptionalFields(t *testing.T) {
	c, err := ParseCandidate([]byte(`{"name": "Refrigerator", "func_time": 1440}`))
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if c.Power != nil {
		t.Errorf("power should be nil when absent, got %v", *c.Power)
	}
	if c.Number != nil || c.FuncCycle != nil || c.OccasionalUse != nil || c.WdWeType != nil {
		t.Error("absent optional fields must stay nil; defaults are the engine's job")
	}
}

func TestParseCandidate_BadWindowShape(t *testing.T) {
	_, err := ParseCandidate([]byte(`{"name": "TV", "window_1": [540]}`))
	if err == nil {
		t.Fatal("expected error for one-element window")
	}
	d, ok := AsDiagnostic(err)
	if !ok {
		t.Fatalf("expected diagnostic, got %v", err)
	}
	if d.Code != CodeOutOfRangeField || d.Field != "window_1" {
		t.Errorf("diagnostic = %v, want out_of_range_field on window_1", d)
	}
}

func TestParseCandidate_BadFixedValue(t *testing.T) {
	_, err := ParseCandidate([]byte(`{"name": "Fridge", "fixed": "maybe"}`))
	d, ok := AsDiagnostic(err)
	if !ok {
		t.Fatalf("expected diagnostic, got %v", err)
	}
	if d.Field != "fixed" {
		t.Errorf("field = %q, want fixed", d.Field)
	}
}

func TestParseCandidate_InvalidJSON(t *testing.T) {
	_, err := ParseCandidate([]byte(`{"name":`))
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if _, ok := AsDiagnostic(err); ok {
		t.Error("malformed JSON is a plain error, not a user-facing diagnostic")
	}
}

func TestDiagnostic_Prompt(t *testing.T) {
	tests := []struct {
		name string
		diag *Diagnostic
		want string // substring
	}{
		{"missing field", MissingRequiredField("power"), "power"},
		{"out of range", OutOfRangeField("occasional_use", "must be between 0 and 1"), "occasional_use"},
		{"window count", InvalidWindowCount(0), "time window"},
		{"overlap names both windows", OverlappingWindows(TimeWindow{60, 120}, TimeWindow{100, 180}), "01:00-02:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.diag.Prompt(); !strings.Contains(got, tt.want) {
				t.Errorf("Prompt() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}
