package pipeline

// Split names a dataset partition. SplitNone means partitioning is
// disabled and samples go to the top-level X/ and Y/ folders.
type Split string

const (
	SplitNone  Split = ""
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Assign routes subject i of numSubjects to a partition. Test subjects
// are the last testFraction percent of the iteration order, validation
// subjects the next valFraction percent working backward, and the rest is
// training data. Fractions are integer percentages; the caller validates
// testFraction+valFraction <= 100.
//
// The assignment is a pure function of the subject's fractional position,
// independent of any sample-level randomness, so a subject's partition is
// stable across runs with the same ordering.
func Assign(i, numSubjects, testFraction, valFraction int) Split {
	if testFraction == 0 && valFraction == 0 {
		return SplitNone
	}
	pos := 100 * float64(i) / float64(numSubjects)
	if testFraction > 0 && pos > float64(100-testFraction) {
		return SplitTest
	}
	if valFraction > 0 && pos > float64(100-valFraction-testFraction) {
		return SplitVal
	}
	return SplitTrain
}
