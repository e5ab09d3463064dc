package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		tag         string
		oldNumber   string
		newNumber   string
		oldRev      string
		newRev      string
		expected    string
		wantChanged bool
	}{
		{"append revision", "669-EST-01-PE-E00", "01", "01", "", "D", "669-EST-01-PE-E00-D", true},
		{"number change keeps revision", "669-EST-01-PE-E00-D", "01", "02", "D", "D", "669-EST-02-PE-E00-D", true},
		{"clear revision", "669-EST-01-PE-E00-D", "01", "01", "D", "", "669-EST-01-PE-E00", true},
		{"placeholder revision clears", "669-EST-01-PE-E00-D", "01", "01", "D", "-", "669-EST-01-PE-E00", true},
		{"replace revision", "669-EST-01-PE-E00-A", "01", "01", "A", "B", "669-EST-01-PE-E00-B", true},
		{"number and revision", "669-EST-01-PE-E00", "01", "07", "", "A", "669-EST-07-PE-E00-A", true},
		{"empty new number ignored", "669-EST-01-PE-E00", "01", "", "", "", "669-EST-01-PE-E00", false},
		{"nothing changed", "669-EST-01-PE-E00-A", "01", "01", "A", "A", "669-EST-01-PE-E00-A", false},
		{"clear on five segments is no-op", "669-EST-01-PE-E00", "01", "01", "A", "", "669-EST-01-PE-E00", false},
		{"three segments untouched", "669-EST-01", "01", "02", "A", "B", "669-EST-01", false},
		{"four segments untouched", "669-EST-01-PE", "01", "02", "", "B", "669-EST-01-PE", false},
		{"empty tag", "", "", "02", "", "A", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Reconcile(tt.tag, tt.oldNumber, tt.newNumber, tt.oldRev, tt.newRev)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestParseAndBuild(t *testing.T) {
	p, ok := Parse("669-EST-01-PE-E00-D")
	assert.True(t, ok)
	assert.Equal(t, Parts{Project: "669", Discipline: "EST", Number: "01", Phase: "PE", Emission: "E00", Revision: "D"}, p)
	assert.Equal(t, "669-EST-01-PE-E00-D", Build(p))

	p.Revision = ""
	assert.Equal(t, "669-EST-01-PE-E00", Build(p))

	_, ok = Parse("669-EST")
	assert.False(t, ok)
}
