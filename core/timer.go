package core

import "time"

// Pause waits d when drv reaches real hardware and returns at once otherwise.
func Pause(drv GPIODriver, d time.Duration) {
	if d <= 0 || !drv.SupportsRealTiming() {
		return
	}
	time.Sleep(d)
}

// HalfPeriod splits a step period into its high and low phases.
func HalfPeriod(period time.Duration) (high, low time.Duration) {
	high = period / 2
	return high, period - high
}
