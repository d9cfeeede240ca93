package workload

import (
	"context"
	"fmt"
	"math"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Normalize() Vec3 { return a.Scale(1 / math.Sqrt(a.Dot(a))) }

// Ray is a half-line from Origin along Direction.
type Ray struct {
	Origin, Direction Vec3
}

// Sphere is a diffuse sphere; Color components are in [0, 255].
type Sphere struct {
	Center Vec3
	Radius float64
	Color  Vec3
}

// Light is a point light.
type Light struct {
	Position  Vec3
	Intensity float64
}

// Scene is what RenderSpheres draws.
type Scene struct {
	Spheres    []Sphere
	Light      Light
	Background Color
}

// DefaultScene returns two spheres resting above a large floor sphere.
func DefaultScene() Scene {
	return Scene{
		Spheres: []Sphere{
			{Center: Vec3{-3, 0, -16}, Radius: 2, Color: Vec3{255, 128, 128}},
			{Center: Vec3{2, 1, -14}, Radius: 3, Color: Vec3{128, 255, 128}},
			{Center: Vec3{0, -502, -20}, Radius: 500, Color: Vec3{128, 128, 255}},
		},
		Light:      Light{Position: Vec3{20, 20, 0}, Intensity: 1.5},
		Background: Color{25, 25, 40},
	}
}

// intersect returns the distance along r to the near surface of s.
func intersect(r Ray, s Sphere) (float64, bool) {
	oc := r.Origin.Sub(s.Center)
	a := r.Direction.Dot(r.Direction)
	b := 2 * oc.Dot(r.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	return t, t > 0
}

// CastRay shades the closest sphere hit by r with Lambertian lighting.
func (sc *Scene) CastRay(r Ray) Color {
	closest := math.MaxFloat64
	var hit *Sphere
	for i := range sc.Spheres {
		if t, ok := intersect(r, sc.Spheres[i]); ok && t < closest {
			closest = t
			hit = &sc.Spheres[i]
		}
	}
	if hit == nil {
		return sc.Background
	}

	point := r.Origin.Add(r.Direction.Scale(closest))
	normal := point.Sub(hit.Center).Normalize()
	toLight := sc.Light.Position.Sub(point).Normalize()
	intensity := math.Max(0, normal.Dot(toLight)) * sc.Light.Intensity

	return Color{
		R: uint8(math.Min(255, hit.Color.X*intensity)),
		G: uint8(math.Min(255, hit.Color.Y*intensity)),
		B: uint8(math.Min(255, hit.Color.Z*intensity)),
	}
}

// RenderSpheres renders scene at w×h, one task per row.
func RenderSpheres(ctx context.Context, pool *stealpool.Pool, scene Scene, w, h int) (*Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", w, h)
	}

	img := NewImage(w, h)
	g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))

	for y := 0; y < h; y++ {
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := 0; x < w; x++ {
				dir := Vec3{
					X: float64(x) + 0.5 - float64(w)/2,
					Y: -(float64(y) + 0.5) + float64(h)/2,
					Z: -float64(h),
				}
				img.Set(x, y, scene.CastRay(Ray{Direction: dir.Normalize()}))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return img, nil
}
