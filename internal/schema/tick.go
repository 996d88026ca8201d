package schema

// ResolveTick rounds a raw tick toward negative infinity to the nearest
// multiple of spacing. With spacing 60, a raw tick of -100 resolves to -120.
func ResolveTick(raw Tick, spacing Tick) Tick {
	if spacing <= 0 {
		return raw
	}
	rem := raw % spacing
	if rem == 0 {
		return raw
	}
	if raw < 0 {
		return raw - rem - spacing
	}
	return raw - rem
}

// IsAligned reports whether tick is a multiple of spacing.
func IsAligned(tick Tick, spacing Tick) bool {
	return spacing > 0 && tick%spacing == 0
}
