package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		wantType ColumnType
		wantConf float64
	}{
		{"all numbers", []string{"1", "2.5", "-3", "4,75"}, TypeNumber, 1},
		{"email majority", []string{"a@b.com", "bad", "c@d.com"}, TypeEmail, 2.0 / 3.0},
		{"phones", []string{"+33 6 12 34 56 78", "(01) 45-67-89-10"}, TypePhone, 1},
		{"dates", []string{"2024-01-15", "15/01/2024", "01/15/2024"}, TypeDate, 1},
		{"names fall back to text", []string{"Jean", "Marie", "Paul"}, TypeText, 1},
		{"below threshold falls back to text", []string{"1", "a", "b"}, TypeText, 1},
		{"empty values ignored", []string{"", " ", "a@b.com"}, TypeEmail, 1},
		{"no values", []string{"", "  "}, TypeEmpty, 1},
		{"nil", nil, TypeEmpty, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferColumnType(tt.values)
			assert.Equal(t, tt.wantType, got.Type)
			assert.InDelta(t, tt.wantConf, got.Confidence, 0.0001)
		})
	}
}

func TestInferColumnType_TieGoesToEarlierType(t *testing.T) {
	// "12345678" is both a number and a phone; number is declared first.
	got := InferColumnType([]string{"12345678", "87654321"})
	assert.Equal(t, TypeNumber, got.Type)
}

func TestInferColumnType_CustomThreshold(t *testing.T) {
	values := []string{"1", "a", "b"}
	got := inferColumnType(values, 0.3)
	assert.Equal(t, TypeNumber, got.Type)
	assert.InDelta(t, 1.0/3.0, got.Confidence, 0.0001)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		value                      string
		number, email, phone, date bool
	}{
		{"42", true, false, false, false},
		{"3,14", true, false, false, false},
		{"1,000.5", false, false, false, false},
		{"1e3", true, false, false, false},
		{"NaN", false, false, false, false},
		{"jean@exemple.fr", false, true, false, false},
		{"a@b@c.fr", false, false, false, false},
		{"jean@exemple", false, false, false, false},
		{"+33 6 12 34 56 78", false, false, true, false},
		{"01 23 45", false, false, false, false},
		{"2024-02-29", false, false, false, true},
		{"2024-02-29T10:00:00Z", false, false, false, true},
		{"29/02/2024", false, false, false, true},
		{"31/02/2024", false, false, false, false},
		{"Paris", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.number, IsNumber(tt.value), "number")
			assert.Equal(t, tt.email, IsEmail(tt.value), "email")
			assert.Equal(t, tt.phone, IsPhone(tt.value), "phone")
			assert.Equal(t, tt.date, IsDate(tt.value), "date")
		})
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	now := time.Now().Year()

	got, ok := ParseDate("15/03/99")
	assert.True(t, ok)
	assert.Equal(t, 1999, got.Year())

	got, ok = ParseDate("15/03/05")
	assert.True(t, ok)
	assert.Equal(t, 2005, got.Year())

	// 68 parses as 2068; push back a century once it is past the pivot.
	got, ok = ParseDate("15/03/68")
	assert.True(t, ok)
	if 2068 > now+TwoDigitYearPivot {
		assert.Equal(t, 1968, got.Year())
	} else {
		assert.Equal(t, 2068, got.Year())
	}
}

func TestMatchesType(t *testing.T) {
	assert.True(t, MatchesType(TypeText, "anything"))
	assert.True(t, MatchesType(TypeEmpty, "anything"))
	assert.False(t, MatchesType(TypeEmail, "bad"))
	assert.True(t, MatchesType(TypeNumber, " 12 "))
}
