package sim

import (
	"log"
	"math"
)

// Freq is a clock frequency in Hz.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks.
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a time to the number of whole cycles elapsed since time 0.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	timeMustBeValid(t)

	return uint64(math.Round(float64(t) * float64(f)))
}

// ThisTick returns the tick at or right after the given time.
//
//	            input
//	            (          ]
//	 |----------|----------|----------|----->
//	                       |
//	                       output
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	timeMustBeValid(now)

	count := float64(now) * float64(f)
	tick := VTimeInSec(math.Ceil(snapToCycle(count)) / float64(f))

	if tick < now {
		return now
	}

	return tick
}

// NextTick returns the tick strictly after the given time.
//
//	            input
//	            [          )
//	 |----------|----------|----------|----->
//	                       |
//	                       output
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	timeMustBeValid(now)

	count := math.Floor(snapToCycle(float64(now) * float64(f)))

	return VTimeInSec((count + 1) / float64(f))
}

// snapToCycle moves a cycle count that lies within floating-point noise of a
// whole cycle onto that cycle.
func snapToCycle(count float64) float64 {
	const tolerance = 1e-6

	if rounded := math.Round(count); math.Abs(count-rounded) < tolerance {
		return rounded
	}

	return count
}

// NCyclesLater returns the tick that is n cycles after the given time.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	timeMustBeValid(now)

	return f.ThisTick(now + VTimeInSec(Freq(n)/f))
}

// CyclesBetween returns how many ticks lie between two times.
func (f Freq) CyclesBetween(from, to VTimeInSec) uint64 {
	if to < from {
		return 0
	}

	return f.Cycle(to) - f.Cycle(from)
}

func timeMustBeValid(t VTimeInSec) {
	if math.IsNaN(float64(t)) || t < 0 {
		log.Panicf("invalid time %f", t)
	}
}
