package survey

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Candidate is the NLU-proposed field set for one appliance, parsed from a
// turn's extracted_data payload. Optional fields are nil when the user did
// not state them; schema defaults are applied by the validation engine, not
// here.
type Candidate struct {
	Name          string
	Number        *int
	Power         *int
	FuncTime      *int
	NumWindows    *int
	Windows       [3]*TimeWindow
	FuncCycle     *int
	Fixed         *bool
	OccasionalUse *float64
	WdWeType      *int
	Update        bool // the user is correcting an already-committed appliance
}

// flexInt decodes a JSON number or a numeric string. The NLU layer is not
// reliable about quoting, so "2" and 2 are both accepted.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty numeric value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexInt(int(v))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty numeric value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type rawCandidate struct {
	Name          string     `json:"name"`
	Number        *flexInt   `json:"number"`
	Power         *flexInt   `json:"power"`
	FuncTime      *flexInt   `json:"func_time"`
	NumWindows    *flexInt   `json:"num_windows"`
	Window1       []flexInt  `json:"window_1"`
	Window2       []flexInt  `json:"window_2"`
	Window3       []flexInt  `json:"window_3"`
	FuncCycle     *flexInt   `json:"func_cycle"`
	Fixed         *string    `json:"fixed"`
	OccasionalUse *flexFloat `json:"occasional_use"`
	WdWeType      *flexInt   `json:"wd_we_type"`
	Update        bool       `json:"update"`
}

// ParseCandidate decodes one extracted_data JSON object into a Candidate.
// Malformed payloads return a plain error; shape problems on individual
// windows return a Diagnostic so they can be surfaced as corrections.
func ParseCandidate(data []byte) (Candidate, error) {
	var raw rawCandidate
	if err := json.Unmarshal(data, &raw); err != nil {
		return Candidate{}, fmt.Errorf("parse candidate: %w", err)
	}

	c := Candidate{
		Name:   strings.TrimSpace(raw.Name),
		Update: raw.Update,
	}
	c.Number = intPtr(raw.Number)
	c.Power = intPtr(raw.Power)
	c.FuncTime = intPtr(raw.FuncTime)
	c.NumWindows = intPtr(raw.NumWindows)
	c.FuncCycle = intPtr(raw.FuncCycle)
	c.WdWeType = intPtr(raw.WdWeType)

	if raw.OccasionalUse != nil {
		v := float64(*raw.OccasionalUse)
		c.OccasionalUse = &v
	}

	if raw.Fixed != nil {
		switch strings.ToLower(strings.TrimSpace(*raw.Fixed)) {
		case "yes":
			v := true
			c.Fixed = &v
		case "no", "":
			v := false
			c.Fixed = &v
		default:
			return Candidate{}, OutOfRangeField("fixed", fmt.Sprintf("must be yes or no, got %q", *raw.Fixed))
		}
	}

	for i, pair := range [][]flexInt{raw.Window1, raw.Window2, raw.Window3} {
		if pair == nil {
			continue
		}
		field := fmt.Sprintf("window_%d", i+1)
		if len(pair) != 2 {
			return Candidate{}, OutOfRangeField(field, fmt.Sprintf("must be a [start, end] pair, got %d values", len(pair)))
		}
		c.Windows[i] = &TimeWindow{Start: int(pair[0]), End: int(pair[1])}
	}

	return c, nil
}

func intPtr(f *flexInt) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
