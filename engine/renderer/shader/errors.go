package shader

import "fmt"

// ShaderCompileError reports a shader stage that failed to compile. Log carries the compiler's
// diagnostics verbatim.
type ShaderCompileError struct {
	Stage ShaderType
	Key   string
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("shader %q: %s stage failed to compile: %s", e.Key, e.Stage, e.Log)
}

// ProgramLinkError reports a vertex/fragment pair that compiled on its own but could not be
// linked into one program: mismatched stage interfaces, conflicting resource declarations, or a
// pipeline the device rejected. Log carries the diagnostics verbatim.
type ProgramLinkError struct {
	Key string
	Log string
}

func (e *ProgramLinkError) Error() string {
	return fmt.Sprintf("program %q failed to link: %s", e.Key, e.Log)
}
