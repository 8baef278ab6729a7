package profile

import "time"

// SMD291AXName names the reference profile for Chip Quik SMD291AX paste.
const SMD291AXName = "SMD291AX"

// SMD291AXKeyframes is the reference curve: preheat to 100 °C, soak to 150 °C,
// ramp through liquidus to a 235 °C peak, then cool. The first and last
// entries are padding.
var SMD291AXKeyframes = []Keyframe{
	{Time: -30, Temperature: 25},
	{Time: 0, Temperature: 25},
	{Time: 30, Temperature: 100},
	{Time: 120, Temperature: 150},
	{Time: 150, Temperature: 183},
	{Time: 210, Temperature: 235},
	{Time: 240, Temperature: 183},
	{Time: 270, Temperature: 130},
}

const (
	// SMD291AXHeatSoak is the soak plateau target.
	SMD291AXHeatSoak float32 = 150
	// SMD291AXCoolingTime is when the heater is forced off for good.
	SMD291AXCoolingTime = 210 * time.Second
)

// SMD291AX returns the compiled-in reference profile.
func SMD291AX() *Profile {
	p, err := New(SMD291AXName, SMD291AXKeyframes, WithThresholds(SMD291AXHeatSoak, SMD291AXCoolingTime))
	if err != nil {
		// The table above is static; a failure here is a programming error.
		panic(err)
	}
	return p
}
