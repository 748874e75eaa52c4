package game

// StuckDetector signals when classification keeps returning the same
// scene. The counter resets after firing but the scene is kept, so a
// still-frozen screen re-triggers recovery every threshold ticks.
type StuckDetector struct {
	threshold int
	last      string
	count     int
}

func NewStuckDetector(threshold int) *StuckDetector {
	return &StuckDetector{threshold: threshold}
}

// Observe records one classification. Returns true exactly on the
// tick the repeat count reaches the threshold.
func (d *StuckDetector) Observe(scene string) bool {
	if scene == d.last {
		d.count++
	} else {
		d.last = scene
		d.count = 1
	}
	if d.count >= d.threshold {
		d.count = 0
		return true
	}
	return false
}

// Reset clears both the scene and the counter.
func (d *StuckDetector) Reset() {
	d.last = ""
	d.count = 0
}
