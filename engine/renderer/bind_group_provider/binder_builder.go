package bind_group_provider

// BindOption is a functional option used to configure a Bind call.
type BindOption func(*binder)

// WithIgnoreUnknownUniforms makes Bind log and skip inputs the program does not declare instead
// of failing with *UnknownUniform.
//
// Returns:
//   - BindOption: a function that enables the lenient unknown-name policy
func WithIgnoreUnknownUniforms() BindOption {
	return func(b *binder) {
		b.ignoreUnknown = true
	}
}

// WithLabel sets the label used in log records emitted while binding.
//
// Parameters:
//   - label: the label, usually the program key
//
// Returns:
//   - BindOption: a function that sets the label
func WithLabel(label string) BindOption {
	return func(b *binder) {
		b.label = label
	}
}
