package window

// WindowBuilderOption is a functional option for configuring a preview window.
// Use the With* functions to create options.
type WindowBuilderOption func(c *windowConfig)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(c *windowConfig) {
		c.title = title
	}
}

// WithSize sets the initial client area size, normally the output size of the previewed program.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(c *windowConfig) {
		c.width = width
		c.height = height
	}
}

// WithResizable lets the user resize the window.
//
// Parameters:
//   - resizable: true to allow resizing
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithResizable(resizable bool) WindowBuilderOption {
	return func(c *windowConfig) {
		c.resizable = resizable
	}
}
