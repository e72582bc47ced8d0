// Package simulation generates synthetic snapshots of the reference hall:
// pillar, wall and ceiling sensors whose temperatures evolve under a chosen
// scenario.
package simulation

import (
	"fmt"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Hall dimensions.
const (
	RoomWidth  = 50.0
	RoomHeight = 15.0
	RoomDepth  = 40.0

	pillarOffset = 0.76
	wallInset    = 0.2
)

// Sensor types.
const (
	TypePillar  = "pillar"
	TypeWall    = "wall"
	TypeCeiling = "ceiling"
)

// PillarPositions are the (x, z) centres of the eight structural pillars.
var PillarPositions = [][2]float64{
	{-15, -10}, {-5, -10}, {5, -10}, {15, -10},
	{-15, 10}, {-5, 10}, {5, 10}, {15, 10},
}

var (
	pillarHeights = []float64{3, 7, 11}
	wallHeights   = []float64{4, 9}
	pillarFaces   = [][2]float64{
		{pillarOffset, 0}, {-pillarOffset, 0},
		{0, pillarOffset}, {0, -pillarOffset},
	}
)

// Layout returns the initial hall: four faces at three heights on every
// pillar, back and side walls at two heights and a 3 × 3 ceiling grid.
func Layout() []models.SensorReading {
	sensors := make([]models.SensorReading, 0, 128)

	for p, pos := range PillarPositions {
		for h, y := range pillarHeights {
			for f, off := range pillarFaces {
				sensors = append(sensors, models.SensorReading{
					ID:          fmt.Sprintf("p-%d-h%d-f%d", p, h, f),
					Type:        TypePillar,
					Status:      models.StatusOnline,
					Temperature: 22,
					Humidity:    45,
					X:           pos[0] + off[0],
					Y:           y,
					Z:           pos[1] + off[1],
				})
			}
		}
	}

	for x := -20; x <= 20; x += 10 {
		for _, y := range wallHeights {
			sensors = append(sensors, wall(fmt.Sprintf("w-b-%d-%g", x, y), float64(x), y, -RoomDepth/2+wallInset))
		}
	}
	for z := -15; z <= 15; z += 10 {
		for _, y := range wallHeights {
			sensors = append(sensors,
				wall(fmt.Sprintf("w-l-%d-%g", z, y), -RoomWidth/2+wallInset, y, float64(z)),
				wall(fmt.Sprintf("w-r-%d-%g", z, y), RoomWidth/2-wallInset, y, float64(z)),
			)
		}
	}

	for x := -15; x <= 15; x += 15 {
		for z := -12; z <= 12; z += 12 {
			sensors = append(sensors, models.SensorReading{
				ID:          fmt.Sprintf("c-%d-%d", x, z),
				Type:        TypeCeiling,
				Status:      models.StatusOnline,
				Temperature: 20,
				Humidity:    40,
				X:           float64(x),
				Y:           RoomHeight - wallInset,
				Z:           float64(z),
			})
		}
	}
	return sensors
}

func wall(id string, x, y, z float64) models.SensorReading {
	return models.SensorReading{
		ID:          id,
		Type:        TypeWall,
		Status:      models.StatusOnline,
		Temperature: 21,
		Humidity:    45,
		X:           x,
		Y:           y,
		Z:           z,
	}
}
