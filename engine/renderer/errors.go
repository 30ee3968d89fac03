package renderer

import "fmt"

// ContextUnavailable reports that no GPU surface could be obtained: no adapter or device, or a
// surface size the device cannot allocate.
type ContextUnavailable struct {
	Reason string
}

func (e *ContextUnavailable) Error() string {
	return fmt.Sprintf("gpu context unavailable: %s", e.Reason)
}

// SurfaceNotReady reports a read of pixels that do not exist: before the first completed draw,
// after a newer execution replaced them, or after the renderer was released.
type SurfaceNotReady struct {
	Reason string
}

func (e *SurfaceNotReady) Error() string {
	return fmt.Sprintf("surface not ready: %s", e.Reason)
}
