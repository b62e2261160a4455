// Package vitals classifies single vital-sign readings as clinically critical.
package vitals

import (
	"math"
	"strconv"
	"strings"
)

type TestType string

const (
	TestTypeBloodPressure   TestType = "BloodPressure"
	TestTypeHeartRate       TestType = "HeartRate"
	TestTypeRespiratoryRate TestType = "RespiratoryRate"
	TestTypeOxygenLevel     TestType = "OxygenLevel"
)

// TestTypes lists every supported test type.
var TestTypes = []TestType{
	TestTypeBloodPressure,
	TestTypeHeartRate,
	TestTypeRespiratoryRate,
	TestTypeOxygenLevel,
}

func (t TestType) Valid() bool {
	switch t {
	case TestTypeBloodPressure, TestTypeHeartRate, TestTypeRespiratoryRate, TestTypeOxygenLevel:
		return true
	}
	return false
}

// Thresholds. Operators are applied exactly as written in each rule.
const (
	SystolicCrisis  = 180 // >=
	DiastolicCrisis = 120 // >=
	SystolicLow     = 90  // <
	DiastolicLow    = 60  // <
	HeartRateLow    = 50  // <=
	HeartRateHigh   = 120 // >=
	OxygenLow       = 90  // <
	RespiratoryLow  = 10  // <=
	RespiratoryHigh = 30  // >=
)

const (
	ReasonHypertensiveCrisis = "hypertensive crisis"
	ReasonHypotension        = "hypotension"
	ReasonBradycardia        = "bradycardia"
	ReasonTachycardia        = "tachycardia"
	ReasonLowOxygen          = "low oxygen saturation"
	ReasonBradypnea          = "bradypnea"
	ReasonTachypnea          = "tachypnea"
	ReasonCriticalSymptom    = "critical symptom present"
)

// CriticalSymptoms are compared case-insensitively.
var CriticalSymptoms = []string{"fever", "shortnessOfBreath"}

type Result struct {
	Critical bool     `json:"is_critical"`
	Reasons  []string `json:"reasons"`
}

// Classify evaluates every rule independently. A value that cannot be parsed
// never fires a numeric rule; symptoms are still evaluated.
func Classify(testType TestType, value string, symptoms []string) Result {
	reasons := make([]string, 0, 2)

	switch testType {
	case TestTypeBloodPressure:
		if sys, dia, ok := parseBloodPressure(value); ok {
			if sys >= SystolicCrisis || dia >= DiastolicCrisis {
				reasons = append(reasons, ReasonHypertensiveCrisis)
			}
			if sys < SystolicLow || dia < DiastolicLow {
				reasons = append(reasons, ReasonHypotension)
			}
		}
	case TestTypeHeartRate:
		if v, ok := parseNumber(value); ok {
			if v <= HeartRateLow {
				reasons = append(reasons, ReasonBradycardia)
			}
			if v >= HeartRateHigh {
				reasons = append(reasons, ReasonTachycardia)
			}
		}
	case TestTypeOxygenLevel:
		if v, ok := parseNumber(value); ok && v < OxygenLow {
			reasons = append(reasons, ReasonLowOxygen)
		}
	case TestTypeRespiratoryRate:
		if v, ok := parseNumber(value); ok {
			if v <= RespiratoryLow {
				reasons = append(reasons, ReasonBradypnea)
			}
			if v >= RespiratoryHigh {
				reasons = append(reasons, ReasonTachypnea)
			}
		}
	}

	if HasCriticalSymptom(symptoms) {
		reasons = append(reasons, ReasonCriticalSymptom)
	}

	return Result{
		Critical: len(reasons) > 0,
		Reasons:  reasons,
	}
}

func HasCriticalSymptom(symptoms []string) bool {
	for _, s := range symptoms {
		s = strings.TrimSpace(s)
		for _, c := range CriticalSymptoms {
			if strings.EqualFold(s, c) {
				return true
			}
		}
	}
	return false
}

func parseBloodPressure(value string) (int, int, bool) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	sys, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	dia, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return sys, dia, true
}

func parseNumber(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
