// Package cachedio provides a buffered file handle that keeps one fixed-size
// window of a file's bytes in memory.
//
// A [File] wraps an OS descriptor and a cache of capacity C. Reads and
// writes are served from the cached window when the cursor falls inside it;
// a cursor outside the window is a miss, which persists a dirty window and
// reloads the window at the cursor. Transfers larger than the window bypass
// the cache with a single positioned read or write.
//
// # Basic Usage
//
//	f, err := cachedio.Open(fs.NewReal(), "data.bin", "ingest",
//	    cachedio.WithCapacity(64*1024))
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	f.Write([]byte("hello"))
//	f.Seek(0, io.SeekStart)
//	b, err := f.ReadByte()
//
// # Concurrency
//
// A File is not safe for concurrent use. Two handles on the same path are
// independent caches: writes through one become visible to the other only
// after they are flushed and the other reloads its window.
//
// # Errors
//
// End-of-file is reported as [io.EOF] and is never wrapped. Descriptor
// failures are wrapped with the operation and path and keep their original
// error chain. Using a File after [File.Close] is a programming error and
// panics.
package cachedio
