package billing

// DeltaInSeconds returns the whole seconds between two millisecond
// timestamps. Fractions are truncated toward zero.
func DeltaInSeconds(laterMillis, earlierMillis int64) int {
	return int((laterMillis - earlierMillis) / 1000)
}
