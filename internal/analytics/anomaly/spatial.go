package anomaly

import "math"

// ClusterThreshold is the distance, in layout units, below which two
// anomalous sensors are considered part of the same thermal event.
const ClusterThreshold = 6.0

// ClusterConfirmed reports whether at least two anomalous positions lie
// closer than ClusterThreshold to each other. A single anomaly never forms a
// cluster.
func ClusterConfirmed(positions [][3]float64) bool {
	if len(positions) < 2 {
		return false
	}
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if distance(positions[i], positions[j]) < ClusterThreshold {
				return true
			}
		}
	}
	return false
}

func distance(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
