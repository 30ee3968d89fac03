package shader

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/gogpu/naga"
)

// Validate runs the pure Go naga front end over a shader's processed source. A source that does
// not parse is reported as *ShaderCompileError carrying the parser diagnostics. Findings from
// lowering and IR validation are logged at warn level and never fail, since the device compiler
// is the final judge of a module that parses.
//
// Parameters:
//   - s: the shader to validate
//   - lenient: when true parse failures are logged instead of returned
//
// Returns:
//   - error: *ShaderCompileError on a parse failure, nil otherwise
func Validate(s Shader, lenient bool) error {
	log := common.Logger().With("shader", s.Key(), "stage", s.ShaderType().String())

	ast, err := naga.Parse(s.Source())
	if err != nil {
		if lenient {
			log.Warn("wgsl parse failed, deferring to device compiler", "err", err)
			return nil
		}
		return &ShaderCompileError{Stage: s.ShaderType(), Key: s.Key(), Log: err.Error()}
	}

	module, err := naga.LowerWithSource(ast, s.Source())
	if err != nil {
		log.Warn("wgsl lowering reported diagnostics", "err", err)
		return nil
	}
	findings, err := naga.Validate(module)
	if err != nil {
		log.Warn("wgsl validation did not run", "err", err)
		return nil
	}
	if len(findings) > 0 {
		msgs := make([]string, len(findings))
		for i, f := range findings {
			msgs[i] = f.Error()
		}
		log.Warn("wgsl validation reported diagnostics", "count", len(findings), "diagnostics", strings.Join(msgs, "; "))
	}
	return nil
}
