package shadercache

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/gogpu/naga"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

//go:embed shaders/forward.wgsl
var forwardShaderWGSL string

const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// LoadShaderSource reads the WGSL source at path, or returns the embedded
// forward shader when path is empty.
func LoadShaderSource(path string) (string, error) {
	if path == "" {
		return forwardShaderWGSL, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read shader source: %w", err)
	}
	return string(data), nil
}

// CompileWGSL compiles WGSL to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V output is %d bytes, not a whole number of words", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirv, nil
}

// NagaCompiler builds pipeline variants from one WGSL source: the mask
// selects the feature blocks, naga produces SPIR-V and the device creates
// the module and input layout. It runs on the compile worker.
type NagaCompiler struct {
	device renderer.Device
	source string
}

func NewNagaCompiler(device renderer.Device, source string) *NagaCompiler {
	if source == "" {
		source = forwardShaderWGSL
	}
	return &NagaCompiler{
		device: device,
		source: source,
	}
}

func (nc *NagaCompiler) Compile(mask metadata.PermutationMask) (*metadata.PipelineVariant, error) {
	src, err := Preprocess(nc.source, mask.Defines())
	if err != nil {
		return nil, err
	}
	spirv, err := CompileWGSL(src)
	if err != nil {
		return nil, err
	}

	module, err := nc.device.CreateShaderModule(fmt.Sprintf("forward_%s", mask), spirv)
	if err != nil {
		return nil, err
	}
	layout, err := nc.device.CreateInputLayout(mask)
	if err != nil {
		return nil, err
	}

	variant := &metadata.PipelineVariant{
		Mask:          mask,
		VertexProgram: metadata.ProgramHandle{Module: module, EntryPoint: VertexEntryPoint},
		InputLayout:   layout,
	}
	if !mask.Has(metadata.MaskDepthOnly) {
		variant.PixelProgram = metadata.ProgramHandle{Module: module, EntryPoint: FragmentEntryPoint}
	}
	return variant, nil
}
