package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		name     string
		testType TestType
		value    string
		critical bool
		reasons  []string
	}{
		{"systolic boundary", TestTypeBloodPressure, "180/80", true, []string{ReasonHypertensiveCrisis}},
		{"systolic below boundary", TestTypeBloodPressure, "179/80", false, nil},
		{"diastolic boundary", TestTypeBloodPressure, "120/120", true, []string{ReasonHypertensiveCrisis}},
		{"diastolic below boundary", TestTypeBloodPressure, "120/119", false, nil},
		{"low systolic", TestTypeBloodPressure, "89/70", true, []string{ReasonHypotension}},
		{"systolic low boundary", TestTypeBloodPressure, "90/70", false, nil},
		{"low diastolic", TestTypeBloodPressure, "110/59", true, []string{ReasonHypotension}},
		{"diastolic low boundary", TestTypeBloodPressure, "110/60", false, nil},
		{"crisis and hypotension", TestTypeBloodPressure, "200/50", true, []string{ReasonHypertensiveCrisis, ReasonHypotension}},
		{"both crisis criteria", TestTypeBloodPressure, "200/130", true, []string{ReasonHypertensiveCrisis}},
		{"padded blood pressure", TestTypeBloodPressure, " 185 / 80 ", true, []string{ReasonHypertensiveCrisis}},

		{"bradycardia boundary", TestTypeHeartRate, "50", true, []string{ReasonBradycardia}},
		{"heart rate above low boundary", TestTypeHeartRate, "51", false, nil},
		{"tachycardia boundary", TestTypeHeartRate, "120", true, []string{ReasonTachycardia}},
		{"heart rate below high boundary", TestTypeHeartRate, "119", false, nil},
		{"fractional heart rate", TestTypeHeartRate, "119.9", false, nil},

		{"low oxygen", TestTypeOxygenLevel, "89", true, []string{ReasonLowOxygen}},
		{"oxygen boundary", TestTypeOxygenLevel, "90", false, nil},
		{"fractional low oxygen", TestTypeOxygenLevel, "89.9", true, []string{ReasonLowOxygen}},

		{"bradypnea boundary", TestTypeRespiratoryRate, "10", true, []string{ReasonBradypnea}},
		{"respiratory above low boundary", TestTypeRespiratoryRate, "11", false, nil},
		{"tachypnea boundary", TestTypeRespiratoryRate, "30", true, []string{ReasonTachypnea}},
		{"respiratory below high boundary", TestTypeRespiratoryRate, "29", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.testType, tt.value, nil)
			assert.Equal(t, tt.critical, got.Critical)
			if tt.reasons == nil {
				assert.Empty(t, got.Reasons)
			} else {
				assert.Equal(t, tt.reasons, got.Reasons)
			}
		})
	}
}

func TestClassifyMalformedValues(t *testing.T) {
	tests := []struct {
		testType TestType
		value    string
	}{
		{TestTypeBloodPressure, "abc"},
		{TestTypeBloodPressure, "200"},
		{TestTypeBloodPressure, "200/80/10"},
		{TestTypeBloodPressure, "200/"},
		{TestTypeBloodPressure, "120.5/80"},
		{TestTypeHeartRate, "fast"},
		{TestTypeHeartRate, "NaN"},
		{TestTypeHeartRate, "Inf"},
		{TestTypeOxygenLevel, ""},
		{TestTypeRespiratoryRate, "-Inf"},
		{TestType("Temperature"), "45"},
	}

	for _, tt := range tests {
		got := Classify(tt.testType, tt.value, nil)
		assert.False(t, got.Critical, "%s %q", tt.testType, tt.value)
		assert.Empty(t, got.Reasons)
	}
}

func TestClassifySymptomOverride(t *testing.T) {
	got := Classify(TestTypeHeartRate, "70", []string{"fever"})
	assert.True(t, got.Critical)
	assert.Contains(t, got.Reasons, ReasonCriticalSymptom)

	got = Classify(TestTypeOxygenLevel, "98", []string{"cough", "SHORTNESSOFBREATH"})
	assert.True(t, got.Critical)
	assert.Equal(t, []string{ReasonCriticalSymptom}, got.Reasons)

	got = Classify(TestTypeHeartRate, "70", []string{"headache", "Fatigue"})
	assert.False(t, got.Critical)
}

func TestClassifySymptomsSurviveMalformedValue(t *testing.T) {
	got := Classify(TestTypeBloodPressure, "not-a-reading", []string{" Fever "})
	assert.True(t, got.Critical)
	assert.Equal(t, []string{ReasonCriticalSymptom}, got.Reasons)
}

func TestClassifyNumericAndSymptomReasonsAccumulate(t *testing.T) {
	got := Classify(TestTypeHeartRate, "130", []string{"fever"})
	assert.True(t, got.Critical)
	assert.Equal(t, []string{ReasonTachycardia, ReasonCriticalSymptom}, got.Reasons)
}

func TestClassifyIsDeterministic(t *testing.T) {
	inputs := []struct {
		testType TestType
		value    string
		symptoms []string
	}{
		{TestTypeBloodPressure, "180/80", nil},
		{TestTypeHeartRate, "50", []string{"fever"}},
		{TestTypeOxygenLevel, "90", nil},
		{TestTypeRespiratoryRate, "30", []string{"cough"}},
	}

	for _, in := range inputs {
		first := Classify(in.testType, in.value, in.symptoms)
		second := Classify(in.testType, in.value, in.symptoms)
		assert.Equal(t, first, second)
	}
}

func TestTestTypeValid(t *testing.T) {
	for _, tt := range TestTypes {
		assert.True(t, tt.Valid())
	}
	assert.False(t, TestType("bloodpressure").Valid())
	assert.False(t, TestType("").Valid())
}
