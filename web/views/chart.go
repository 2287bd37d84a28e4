package views

import (
	"math"
	"strconv"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/aggregate"
)

// Chart canvas in SVG user units.
const (
	chartWidth   = 640.0
	chartHeight  = 256.0
	chartPadLeft = 64.0
	chartPadBot  = 28.0
	chartPadTop  = 8.0
	chartTicks   = 4
)

type chartBar struct {
	Team string
	Cost float64
	X    float64
	Y    float64
	W    float64
	H    float64
}

type chartTick struct {
	Value float64
	Y     float64
}

type chartLayout struct {
	Bars  []chartBar
	Ticks []chartTick
	Max   float64
}

// layoutChart places one bar per team, in the order given, scaled against a
// rounded-up axis maximum.
func layoutChart(teams []aggregate.TeamSpend) chartLayout {
	plotW := chartWidth - chartPadLeft
	plotH := chartHeight - chartPadBot - chartPadTop

	maxCost := 0.0
	for _, t := range teams {
		maxCost = math.Max(maxCost, t.Cost)
	}
	axisMax := niceCeil(maxCost)

	layout := chartLayout{Max: axisMax}
	for i := 0; i <= chartTicks; i++ {
		v := axisMax * float64(i) / chartTicks
		layout.Ticks = append(layout.Ticks, chartTick{
			Value: v,
			Y:     chartPadTop + plotH - plotH*v/axisMax,
		})
	}

	if len(teams) == 0 {
		return layout
	}

	slot := plotW / float64(len(teams))
	barW := math.Min(slot*0.6, 96)
	for i, t := range teams {
		cost := math.Max(t.Cost, 0)
		h := plotH * cost / axisMax
		layout.Bars = append(layout.Bars, chartBar{
			Team: t.Team,
			Cost: t.Cost,
			X:    chartPadLeft + slot*float64(i) + (slot-barW)/2,
			Y:    chartPadTop + plotH - h,
			W:    barW,
			H:    h,
		})
	}
	return layout
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten. Non-positive
// values map to 1.
func niceCeil(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	f := v / exp
	switch {
	case f <= 1:
		return exp
	case f <= 2:
		return 2 * exp
	case f <= 5:
		return 5 * exp
	default:
		return 10 * exp
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// tickLabel trims the axis label to the precision the scale needs.
func tickLabel(v, axisMax float64) string {
	prec := 0
	if axisMax < 10 {
		prec = int(math.Max(0, -math.Floor(math.Log10(axisMax/chartTicks)))) + 1
	}
	return "$" + strconv.FormatFloat(v, 'f', prec, 64)
}
