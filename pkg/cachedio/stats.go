package cachedio

// Stats counts the syscalls a [File] issued. Counters are written only by
// the handle itself; [File.Stats] hands out copies.
type Stats struct {
	// ReadCalls counts positioned reads: window loads and cache-bypassing reads.
	ReadCalls int64
	// WriteCalls counts positioned writes: window flushes and cache-bypassing writes.
	WriteCalls int64
	// Seeks counts successful repositionings of the descriptor.
	Seeks int64
}

// Stats returns a snapshot of the handle's syscall counters.
func (f *File) Stats() Stats {
	f.checkInvariants()

	return f.stats
}
