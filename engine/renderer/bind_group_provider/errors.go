package bind_group_provider

import "fmt"

// UnknownUniform reports an input whose name the program does not declare, either as a uniform
// scalar or as a texture.
type UnknownUniform struct {
	Name string
}

func (e *UnknownUniform) Error() string {
	return fmt.Sprintf("unknown uniform %q", e.Name)
}

// UnitMismatch reports a texture declared with //@oxy:unit on a different unit than the one
// its position in the input list assigns.
type UnitMismatch struct {
	Name               string
	Declared, Assigned int
}

func (e *UnitMismatch) Error() string {
	return fmt.Sprintf("texture %q is declared on unit %d but was assigned unit %d", e.Name, e.Declared, e.Assigned)
}
