package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting the buffer at a group and
// binding, at a given byte offset.
type BufferWrite struct {
	Group   int
	Binding int
	Offset  uint64
	Data    []byte
}
