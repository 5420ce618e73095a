package mrs

// ConditionKind identifies one experimental condition of a processed
// spectrum. Derived conditions (sum, difference) are produced by the
// edit combiner; the remaining kinds come straight from acquisition.
type ConditionKind int

const (
	// CondOff is the edit-OFF sub-experiment (or the only condition of
	// an unedited acquisition).
	CondOff ConditionKind = iota
	// CondOn is the edit-ON sub-experiment.
	CondOn
	// CondDiff1 is the first difference spectrum (ON - OFF).
	CondDiff1
	// CondDiff2 is the second difference spectrum of four-condition
	// (HERMES/HERCULES) schemes.
	CondDiff2
	// CondSum is the sum spectrum (OFF + ON).
	CondSum
	// CondRef is the water-unsuppressed reference.
	CondRef
	// CondWater is the short-TE water acquisition.
	CondWater
	// CondMM is the macromolecule acquisition.
	CondMM
)

var conditionNames = map[ConditionKind]string{
	CondOff:   "off",
	CondOn:    "on",
	CondDiff1: "diff1",
	CondDiff2: "diff2",
	CondSum:   "sum",
	CondRef:   "ref",
	CondWater: "water",
	CondMM:    "mm",
}

// String returns the canonical lowercase condition name.
func (c ConditionKind) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return "unknown"
}
