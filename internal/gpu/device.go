// Package gpu implements halo's graphics device on OpenGL 4.1 core: vertex
// buffers for the buffer cache, and the marker shader pipeline for the
// render pass. Every function must be called on the thread owning the GL
// context.
package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/batch"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/memory"
)

const stride = batch.FloatsPerVertex * 4

// buffer is a VBO plus the VAO describing its layout.
type buffer struct {
	vbo, vao uint32
	capacity int // vertices
}

// Device implements memory.Device with one VBO/VAO pair per buffer. Buffer
// handles are the VBO names.
type Device struct {
	buffers map[memory.Buffer]*buffer
	logger  *zap.SugaredLogger
}

var _ memory.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{
		buffers: make(map[memory.Buffer]*buffer),
		logger:  logging.Named("gpu"),
	}
}

// checkError drains the GL error queue, mapping GL_OUT_OF_MEMORY to
// memory.ErrOutOfMemory.
func checkError(op string) error {
	var err error
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if code == gl.OUT_OF_MEMORY {
			err = fmt.Errorf("%s: %w", op, memory.ErrOutOfMemory)
		} else if err == nil {
			err = fmt.Errorf("%s: GL error 0x%x", op, code)
		}
	}
	return err
}

// Create allocates a buffer holding capacity vertices.
func (d *Device) Create(capacity int) (memory.Buffer, error) {
	if capacity <= 0 {
		return 0, fmt.Errorf("creating buffer: invalid capacity %d", capacity)
	}

	// Generate OpenGL objects.
	b := &buffer{capacity: capacity}
	gl.GenVertexArrays(1, &b.vao)
	gl.GenBuffers(1, &b.vbo)

	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)

	// Allocate VBO with full capacity.
	gl.BufferData(gl.ARRAY_BUFFER, capacity*stride, nil, gl.DYNAMIC_DRAW)

	// Configure vertex attributes
	// - Attribute 0: position (vec3)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	// - Attribute 1: texture coordinates (vec2)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, stride, gl.PtrOffset(3*4))
	// - Attribute 2: color (vec4)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 4, gl.FLOAT, false, stride, gl.PtrOffset(5*4))
	// - Attribute 3: normal (vec3)
	gl.EnableVertexAttribArray(3)
	gl.VertexAttribPointer(3, 3, gl.FLOAT, false, stride, gl.PtrOffset(9*4))

	// Unbind.
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	if err := checkError("creating buffer"); err != nil {
		b.release()
		return 0, err
	}

	handle := memory.Buffer(b.vbo)
	d.buffers[handle] = b
	d.logger.Debugf("created buffer %d (%d vertices, %d bytes)", handle, capacity, capacity*stride)
	return handle, nil
}

// Upload writes vertices at the start of the buffer.
func (d *Device) Upload(handle memory.Buffer, vertices []float32) error {
	b, ok := d.buffers[handle]
	if !ok {
		return fmt.Errorf("uploading to unknown buffer %d", handle)
	}
	if len(vertices) == 0 {
		return nil
	}
	count := len(vertices) / batch.FloatsPerVertex
	if count > b.capacity {
		return fmt.Errorf("uploading %d vertices to buffer %d with capacity %d", count, handle, b.capacity)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("uploading vertices")
}

// Copy copies the first vertexCount vertices of src into dst, without a
// round trip through host memory.
func (d *Device) Copy(dstHandle, srcHandle memory.Buffer, vertexCount int) error {
	src, ok := d.buffers[srcHandle]
	if !ok {
		return fmt.Errorf("copying from unknown buffer %d", srcHandle)
	}
	dst, ok := d.buffers[dstHandle]
	if !ok {
		return fmt.Errorf("copying to unknown buffer %d", dstHandle)
	}
	if vertexCount > src.capacity || vertexCount > dst.capacity {
		return fmt.Errorf("copying %d vertices between buffers of %d and %d", vertexCount, src.capacity, dst.capacity)
	}

	gl.BindBuffer(gl.COPY_READ_BUFFER, src.vbo)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, dst.vbo)
	gl.CopyBufferSubData(gl.COPY_READ_BUFFER, gl.COPY_WRITE_BUFFER, 0, 0, vertexCount*stride)
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return checkError("copying buffer")
}

// Destroy releases a buffer. Unknown handles are ignored.
func (d *Device) Destroy(handle memory.Buffer) {
	b, ok := d.buffers[handle]
	if !ok {
		return
	}
	b.release()
	delete(d.buffers, handle)
	d.logger.Debugf("destroyed buffer %d", handle)
}

// Len returns the number of live buffers.
func (d *Device) Len() int { return len(d.buffers) }

// draw issues the triangles of the first vertexCount vertices.
func (d *Device) draw(handle memory.Buffer, vertexCount int) {
	b, ok := d.buffers[handle]
	if !ok {
		return
	}
	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(vertexCount))
}

// release frees the OpenGL resources.
func (b *buffer) release() {
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
		b.vao = 0
	}
	if b.vbo != 0 {
		gl.DeleteBuffers(1, &b.vbo)
		b.vbo = 0
	}
}
