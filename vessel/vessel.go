package vessel

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultSpeed = 12.0
	DefaultFuel  = 20.0
)

var ErrUnknownClass = errors.New("unknown vessel class")

// Class is a deadweight tonnage bracket with its service speed (knots) and
// fuel consumption (tonnes per day).
type Class struct {
	Low   int     `json:"low"`
	High  int     `json:"high"`
	Name  string  `json:"name"`
	Speed float64 `json:"speed"`
	Fuel  float64 `json:"fuel"`
}

func (c Class) Label() string {
	return fmt.Sprintf("%s - %s DWT (%s)", thousands(c.Low), thousands(c.High), c.Name)
}

var Classes = []Class{
	{2000, 4000, "Mini-Bulker", 10.0, 3.5},
	{4000, 6000, "Mini-Bulker", 10.5, 5.0},
	{6000, 8000, "Mini-Bulker", 10.5, 7.0},
	{8000, 10000, "Mini-Bulker", 11.0, 9.0},
	{10000, 12000, "Handysize", 11.5, 10.5},
	{12000, 14000, "Handysize", 12.0, 11.5},
	{14000, 16000, "Handysize", 12.5, 12.5},
	{16000, 18000, "Handysize", 12.5, 13.5},
	{18000, 20000, "Handysize", 13.0, 14.5},
	{20000, 22000, "Handysize", 13.0, 15.5},
	{22000, 24000, "Handysize", 13.5, 16.75},
	{24000, 26000, "Handysize", 13.5, 18.25},
	{26000, 28000, "Handysize", 14.0, 19.5},
	{28000, 30000, "Handysize", 14.0, 20.5},
	{30000, 32000, "Handysize", 14.0, 21.5},
	{32000, 34000, "Handysize", 14.0, 22.5},
	{34000, 36000, "Handysize", 14.0, 23.5},
	{36000, 38000, "Handysize", 14.0, 24.5},
	{38000, 40000, "Handysize", 14.0, 25.5},
	{40000, 42000, "Supramax", 14.0, 26.5},
	{42000, 44000, "Supramax", 14.0, 27.5},
	{44000, 46000, "Supramax", 14.5, 28.5},
	{46000, 48000, "Supramax", 14.5, 29.5},
	{48000, 50000, "Supramax", 14.5, 30.5},
	{50000, 52000, "Supramax", 14.5, 31.5},
	{52000, 54000, "Supramax", 14.5, 32.5},
	{54000, 56000, "Supramax", 14.5, 33.5},
	{56000, 58000, "Supramax", 14.5, 34.5},
	{58000, 60000, "Supramax", 14.5, 35.5},
}

type Kind int

const (
	// Selected takes speed and fuel from the class table.
	Selected Kind = iota
	// Manual carries values typed by the user. The class index is kept so
	// the selector does not move.
	Manual
)

func (k Kind) String() string {
	if k == Manual {
		return "manual"
	}
	return "selected"
}

type Profile struct {
	Kind  Kind
	Class int
	speed float64
	fuel  float64
}

func Default() Profile {
	return Profile{Kind: Selected, Class: 0}
}

func Select(class int) (Profile, error) {
	if class < 0 || class >= len(Classes) {
		return Profile{}, ErrUnknownClass
	}
	return Profile{Kind: Selected, Class: class}, nil
}

// WithSpeed overrides the speed, keeping the current fuel value.
func (p Profile) WithSpeed(knots float64) Profile {
	return Profile{Kind: Manual, Class: p.Class, speed: knots, fuel: p.Fuel()}
}

// WithFuel overrides the consumption, keeping the current speed value.
func (p Profile) WithFuel(perDay float64) Profile {
	return Profile{Kind: Manual, Class: p.Class, speed: p.Speed(), fuel: perDay}
}

func (p Profile) Speed() float64 {
	if p.Kind == Manual {
		if p.speed > 0 && !math.IsInf(p.speed, 0) {
			return p.speed
		}
		return DefaultSpeed
	}
	return Classes[p.Class].Speed
}

func (p Profile) Fuel() float64 {
	if p.Kind == Manual {
		if p.fuel > 0 && !math.IsInf(p.fuel, 0) {
			return p.fuel
		}
		return DefaultFuel
	}
	return Classes[p.Class].Fuel
}

// ClosestByDwt returns the class whose bracket middle is nearest to dwt.
func ClosestByDwt(dwt float64) (int, bool) {
	if !(dwt > 0) {
		return 0, false
	}
	closest := 0
	minDiff := math.Inf(1)
	for i, c := range Classes {
		mid := float64(c.Low+c.High) / 2
		if diff := math.Abs(dwt - mid); diff < minDiff {
			minDiff = diff
			closest = i
		}
	}
	return closest, true
}

// Estimate returns the calm water passage time in days and the fuel burnt
// over distanceNm.
func (p Profile) Estimate(distanceNm float64) (days float64, fuel float64) {
	days = distanceNm / (p.Speed() * 24)
	return days, days * p.Fuel()
}

// FormatDays renders a duration in days as "Xd Yh".
func FormatDays(days float64) string {
	d := math.Floor(days)
	h := math.Round((days - d) * 24)
	if h >= 24 {
		d++
		h = 0
	}
	return fmt.Sprintf("%dd %dh", int(d), int(h))
}

func thousands(n int) string {
	s := fmt.Sprintf("%d", n)
	out := ""
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out += ","
		}
		out += string(c)
	}
	return out
}
