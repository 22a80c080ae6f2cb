package math

// Vec4 represents a 4D vector. Clear colours use X=R, Y=G, Z=B, W=A.
type Vec4 struct {
	X, Y, Z, W float32
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func NewVec4Zero() Vec4 {
	return Vec4{}
}

// NewVec4FromRGBA8 converts 8-bit channels to a normalized colour.
func NewVec4FromRGBA8(r, g, b, a uint8) Vec4 {
	return Vec4{
		X: float32(r) / 255.0,
		Y: float32(g) / 255.0,
		Z: float32(b) / 255.0,
		W: float32(a) / 255.0,
	}
}

// Elements returns the components in RGBA order.
func (v Vec4) Elements() []float32 {
	return []float32{v.X, v.Y, v.Z, v.W}
}

// Clamped returns a copy with every component clamped to [low, high].
func (v Vec4) Clamped(low, high float32) Vec4 {
	return Vec4{
		X: Clamp(v.X, low, high),
		Y: Clamp(v.Y, low, high),
		Z: Clamp(v.Z, low, high),
		W: Clamp(v.W, low, high),
	}
}
