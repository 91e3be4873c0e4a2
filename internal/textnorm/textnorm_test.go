package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstnames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Auguste,Titus  ", "Auguste, Titus"},
		{"  Auguste  , Titus, ", "Auguste, Titus"},
		{"", ""},
		{"Jean  Baptiste", "Jean Baptiste"},
		{"Marie,,Louise", "Marie, Louise"},
		{"Pierre", "Pierre"},
		{"Pierre,", "Pierre"},
		{"Pierre , ,", "Pierre"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Firstnames(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Firstnames(got), "not idempotent")
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "elisee reclus", Fold("Élisée Reclus"))
	assert.Equal(t, "francois", Fold("FRANÇOIS"))
	assert.Equal(t, "", Fold(""))
}

func TestFoldQuery(t *testing.T) {
	assert.Equal(t, "dupont", FoldQuery("  *Dupont "))
	assert.Equal(t, "hel*", FoldQuery("?*Hél*"))
	assert.Equal(t, "", FoldQuery("**"))
}

func TestIsDate(t *testing.T) {
	valid := []string{"1850", "1850-02", "1850-02-28", "~1850", "~1850-12-31"}
	for _, s := range valid {
		assert.True(t, IsDate(s), s)
	}
	invalid := []string{"", "185", "1850-13", "1850-00", "1850-02-32", "18500", "1850/02", "~"}
	for _, s := range invalid {
		assert.False(t, IsDate(s), s)
	}
}

func TestPeriodBounds(t *testing.T) {
	tests := []struct {
		in         string
		start, end string
		ok         bool
	}{
		{"1850", "1850-01-01", "1850-12-31", true},
		{"1850-02", "1850-02-01", "1850-02-28", true},
		{"1852-02", "1852-02-01", "1852-02-29", true},
		{"1850-06-15", "1850-06-15", "1850-06-15", true},
		{"~1848", "1848-01-01", "1848-12-31", true},
		{"1850-06-15T00:00", "1850-06-01", "1850-06-30", true},
		{"vers 1850", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, ok := PeriodBounds(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
			assert.Equal(t, tt.start, PeriodStart(tt.in))
			assert.Equal(t, tt.end, PeriodEnd(tt.in))
		})
	}
}
