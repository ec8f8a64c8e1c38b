// Package report builds the survey export document consumed by the
// downstream energy-consumption model.
package report

import (
	"time"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// Appliance is one exported appliance in the model's input layout.
type Appliance struct {
	Name          string  `json:"name"`
	Number        int     `json:"number"`
	Power         int     `json:"power"`
	FuncTime      int     `json:"func_time"`
	NumWindows    int     `json:"num_windows"`
	Window1       []int   `json:"window_1"`
	Window2       []int   `json:"window_2,omitempty"`
	Window3       []int   `json:"window_3,omitempty"`
	FuncCycle     int     `json:"func_cycle"`
	Fixed         string  `json:"fixed"`
	OccasionalUse float64 `json:"occasional_use"`
	WdWeType      int     `json:"wd_we_type"`
}

// Export is the full survey document for one session.
type Export struct {
	SurveyDate      string      `json:"survey_date"`
	UserID          string      `json:"User_ID"`
	FamilyID        string      `json:"Family_ID"`
	SessionID       string      `json:"session_id"`
	RandomVarW      float64     `json:"random_var_w"`
	TotalAppliances int         `json:"total_appliances"`
	TotalDailyKWh   float64     `json:"total_daily_energy_kwh"`
	Appliances      []Appliance `json:"appliances"`
}

// randomVarW is the load-model variability constant carried verbatim into
// every export.
const randomVarW = 0.2

// Build assembles the export for a session's committed appliances.
func Build(sess survey.Session, appliances []survey.Appliance, now time.Time) Export {
	out := Export{
		SurveyDate:      now.Format("2006-01-02 15:04:05"),
		UserID:          sess.UserID,
		FamilyID:        sess.FamilyID,
		SessionID:       sess.ID,
		RandomVarW:      randomVarW,
		TotalAppliances: len(appliances),
		TotalDailyKWh:   round2(TotalDailyKWh(appliances)),
	}
	for _, a := range appliances {
		out.Appliances = append(out.Appliances, exportAppliance(a))
	}
	return out
}

// TotalDailyKWh sums power x count x hours across appliances.
func TotalDailyKWh(appliances []survey.Appliance) float64 {
	total := 0.0
	for _, a := range appliances {
		total += float64(a.Power) * float64(a.Number) * float64(a.FuncTime) / 60.0 / 1000.0
	}
	return total
}

func exportAppliance(a survey.Appliance) Appliance {
	out := Appliance{
		Name:          a.Name,
		Number:        a.Number,
		Power:         a.Power,
		FuncTime:      a.FuncTime,
		NumWindows:    a.NumWindows,
		FuncCycle:     a.FuncCycle,
		Fixed:         "no",
		OccasionalUse: a.OccasionalUse,
		WdWeType:      a.WdWeType,
	}
	if a.Fixed {
		out.Fixed = "yes"
	}
	pairs := [][]int{}
	for _, w := range a.Windows {
		pairs = append(pairs, []int{w.Start, w.End})
	}
	if len(pairs) > 0 {
		out.Window1 = pairs[0]
	}
	if len(pairs) > 1 {
		out.Window2 = pairs[1]
	}
	if len(pairs) > 2 {
		out.Window3 = pairs[2]
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
