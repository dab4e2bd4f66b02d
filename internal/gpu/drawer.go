package gpu

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/halo/internal/batch"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/memory"
	"github.com/irfansharif/halo/internal/render"
)

// boxEdges indexes pairs of geom.Box.Corners forming the twelve edges.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // along x
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // along y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // along z
}

var boxColor = [4]float32{1, 0.85, 0.2, 1}

// Drawer implements render.Drawer on a Device and ShaderManager.
type Drawer struct {
	device  *Device
	shaders *ShaderManager

	lines  memory.Buffer // scratch buffer for box outlines
	vertex []float32
}

var _ render.Drawer = (*Drawer)(nil)

// NewDrawer sets up the fixed pipeline state and the outline buffer.
func NewDrawer(device *Device, shaders *ShaderManager) (*Drawer, error) {
	lines, err := device.Create(len(boxEdges) * 2)
	if err != nil {
		return nil, err
	}
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	return &Drawer{
		device:  device,
		shaders: shaders,
		lines:   lines,
		vertex:  make([]float32, 0, len(boxEdges)*2*batch.FloatsPerVertex),
	}, nil
}

func (d *Drawer) Begin(projection, rotation mgl32.Mat4) {
	d.shaders.Use()
	d.shaders.SetCamera(projection, rotation)
}

func (d *Drawer) DrawBatch(buf memory.Buffer, vertexCount int, origin mgl32.Vec3) {
	d.shaders.SetOrigin(origin)
	d.device.draw(buf, vertexCount)
}

func (d *Drawer) DrawBox(box geom.Box) {
	corners := box.Corners()
	d.vertex = d.vertex[:0]
	for _, edge := range boxEdges {
		for _, i := range edge {
			c := corners[i]
			d.vertex = append(d.vertex,
				float32(c[0]), float32(c[1]), float32(c[2]),        // position
				0, 0,                                               // texture
				boxColor[0], boxColor[1], boxColor[2], boxColor[3], // color
				0, 0, 0,                                            // no normal: unlit
			)
		}
	}
	if err := d.device.Upload(d.lines, d.vertex); err != nil {
		return
	}

	d.shaders.SetOrigin(mgl32.Vec3{})
	b := d.device.buffers[d.lines]
	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.LINES, 0, int32(len(boxEdges)*2))
}

func (d *Drawer) End() {
	gl.BindVertexArray(0)
}

// Delete releases the outline buffer.
func (d *Drawer) Delete() {
	d.device.Destroy(d.lines)
}
