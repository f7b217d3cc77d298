package domain

// PeriodLabel is one of the 12 fixed month codes of the academic-year cycle.
// The cycle starts in April and ends in March, independent of calendar year.
type PeriodLabel string

const (
	PeriodApr PeriodLabel = "Apr"
	PeriodMay PeriodLabel = "May"
	PeriodJun PeriodLabel = "Jun"
	PeriodJul PeriodLabel = "Jul"
	PeriodAug PeriodLabel = "Aug"
	PeriodSep PeriodLabel = "Sep"
	PeriodOct PeriodLabel = "Oct"
	PeriodNov PeriodLabel = "Nov"
	PeriodDec PeriodLabel = "Dec"
	PeriodJan PeriodLabel = "Jan"
	PeriodFeb PeriodLabel = "Feb"
	PeriodMar PeriodLabel = "Mar"
)

// AcademicCycle is the ordered set of period labels, April first.
var AcademicCycle = []PeriodLabel{
	PeriodApr, PeriodMay, PeriodJun, PeriodJul, PeriodAug, PeriodSep,
	PeriodOct, PeriodNov, PeriodDec, PeriodJan, PeriodFeb, PeriodMar,
}

// Periodicity describes how often a fee category recurs.
type Periodicity string

const (
	PeriodicityMonthly   Periodicity = "Monthly"
	PeriodicityQuarterly Periodicity = "Quarterly"
	PeriodicityYearly    Periodicity = "Yearly"
	PeriodicityOneTime   Periodicity = "One Time"
)

// ExpandPeriodicity maps a periodicity to the period labels it covers within
// one academic cycle. Monthly covers all 12, Quarterly the first month of
// each quarter, Yearly and One Time only the first month of the cycle.
// An unrecognized periodicity expands to nothing; callers treat an empty
// expansion as "nothing to generate", not as an error.
func ExpandPeriodicity(p Periodicity) []PeriodLabel {
	switch p {
	case PeriodicityMonthly:
		out := make([]PeriodLabel, len(AcademicCycle))
		copy(out, AcademicCycle)
		return out
	case PeriodicityQuarterly:
		return []PeriodLabel{PeriodApr, PeriodJul, PeriodOct, PeriodJan}
	case PeriodicityYearly, PeriodicityOneTime:
		return []PeriodLabel{PeriodApr}
	default:
		return nil
	}
}

// Covers reports whether the periodicity's expansion includes the given label.
func Covers(p Periodicity, label PeriodLabel) bool {
	for _, l := range ExpandPeriodicity(p) {
		if l == label {
			return true
		}
	}
	return false
}

// IsValidPeriod reports whether the label belongs to the academic cycle.
func IsValidPeriod(label PeriodLabel) bool {
	for _, l := range AcademicCycle {
		if l == label {
			return true
		}
	}
	return false
}
