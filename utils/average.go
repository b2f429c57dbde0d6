package utils

// RollingAverage keeps the last numSamples integer readings and averages them.
type RollingAverage struct {
	data   []int
	pos    int
	filled int
}

// NewRollingAverage returns a RollingAverage over numSamples readings.
func NewRollingAverage(numSamples int) *RollingAverage {
	return &RollingAverage{data: make([]int, numSamples)}
}

// NumSamples returns the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add records a reading, evicting the oldest once the window is full.
func (ra *RollingAverage) Add(x int) {
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.filled < len(ra.data) {
		ra.filled++
	}
}

// Average returns the truncating mean of the readings seen so far.
func (ra *RollingAverage) Average() int {
	if ra.filled == 0 {
		return 0
	}
	return IntegerMean(ra.data[:ra.filled])
}
