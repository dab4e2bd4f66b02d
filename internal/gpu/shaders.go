package gpu

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// ShaderManager handles OpenGL shader program compilation, linking, and uniform
// management.
type ShaderManager struct {
	program     uint32 // program ID
	uProjection int32  // uniform location for the projection matrix
	uRotation   int32  // uniform location for the camera rotation
	uOrigin     int32  // uniform location for the camera-relative batch origin
	uLight      int32  // uniform location for the light direction
}

// Vertex shader. Offsets cell-local positions by the batch origin (already
// relative to the camera), then applies rotation and projection.
const vertexShaderSource = `
#version 330 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec2 aUV;
layout (location = 2) in vec4 aColor;
layout (location = 3) in vec3 aNormal;

uniform mat4 uProjection;
uniform mat4 uRotation;
uniform vec3 uOrigin;

out vec2 vUV;
out vec4 vColor;
out vec3 vNormal;

void main() {
    gl_Position = uProjection * uRotation * vec4(aPos + uOrigin, 1.0);
    vUV = aUV;
    vColor = aColor;
    vNormal = aNormal;
}
` + "\x00"

// Fragment shader. Lambert lighting with a strong ambient term, and a glow
// that fades towards the edge of each quad. Geometry without a normal (the
// debug outlines) is drawn flat.
const fragmentShaderSource = `
#version 330 core
in vec2 vUV;
in vec4 vColor;
in vec3 vNormal;

uniform vec3 uLight;

out vec4 FragColor;

void main() {
    float lit = 1.0;
    if (length(vNormal) > 0.0) {
        lit = 0.6 + 0.4 * max(dot(normalize(vNormal), uLight), 0.0);
        float edge = distance(vUV, vec2(0.5));
        lit *= 1.0 - 0.5 * smoothstep(0.3, 0.7, edge);
    }
    FragColor = vec4(vColor.rgb * lit, vColor.a);
}
` + "\x00"

// NewShaderManager creates and initializes a new shader manager with compiled
// and linked shaders.
func NewShaderManager() (*ShaderManager, error) {
	sm := &ShaderManager{}

	// Create and compile shaders.
	vertexShader, err := sm.compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := sm.compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(fragmentShader)

	// Link shader program.
	sm.program = gl.CreateProgram()
	gl.AttachShader(sm.program, vertexShader)
	gl.AttachShader(sm.program, fragmentShader)
	gl.LinkProgram(sm.program)

	// Check linking status.
	var status int32
	gl.GetProgramiv(sm.program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(sm.program, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(sm.program, logLength, nil, gl.Str(logText))
		return nil, fmt.Errorf("shader linking failed: %s", logText)
	}

	// Get uniform locations.
	sm.uProjection = gl.GetUniformLocation(sm.program, gl.Str("uProjection\x00"))
	sm.uRotation = gl.GetUniformLocation(sm.program, gl.Str("uRotation\x00"))
	sm.uOrigin = gl.GetUniformLocation(sm.program, gl.Str("uOrigin\x00"))
	sm.uLight = gl.GetUniformLocation(sm.program, gl.Str("uLight\x00"))
	gl.UseProgram(sm.program) // bind the shader program

	sm.SetLight(mgl32.Vec3{0.3, 1, 0.5})
	return sm, nil
}

// Use binds the shader program.
func (sm *ShaderManager) Use() {
	gl.UseProgram(sm.program)
}

// SetCamera sets the projection and rotation matrices.
func (sm *ShaderManager) SetCamera(projection, rotation mgl32.Mat4) {
	gl.UniformMatrix4fv(sm.uProjection, 1, false, &projection[0])
	gl.UniformMatrix4fv(sm.uRotation, 1, false, &rotation[0])
}

// SetOrigin sets the camera-relative origin of the next draw.
func (sm *ShaderManager) SetOrigin(origin mgl32.Vec3) {
	gl.Uniform3f(sm.uOrigin, origin[0], origin[1], origin[2])
}

// SetLight sets the direction towards the light.
func (sm *ShaderManager) SetLight(dir mgl32.Vec3) {
	dir = dir.Normalize()
	gl.Uniform3f(sm.uLight, dir[0], dir[1], dir[2])
}

// Delete releases the program.
func (sm *ShaderManager) Delete() {
	gl.DeleteProgram(sm.program)
}

// compileShader compiles a single shader from source.
func (sm *ShaderManager) compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	// Check compilation status.
	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("shader compilation failed: %s", logText)
	}

	return shader, nil
}
