package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// =============================================================================
// Chaos FS Tests
//
// These tests verify Chaos fault injection on positioned descriptor I/O and
// that injected errors keep OS-like semantics.
// =============================================================================

func openChaosFile(t *testing.T, chaos *Chaos, content string) (File, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	f, err := chaos.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f, path
}

func Test_Chaos_Passes_Through_When_Mode_Is_NoOp(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{
		OpenFailRate:  1.0,
		ReadFailRate:  1.0,
		WriteFailRate: 1.0,
		SeekFailRate:  1.0,
	})
	chaos.SetMode(ChaosModeNoOp)

	f, _ := openChaosFile(t, chaos, "hello")

	if _, err := f.WriteAt([]byte("J"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	buf := make([]byte, 5)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	if got, want := string(buf), "Jello"; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}

	if got := chaos.Stats().Total(); got != 0 {
		t.Fatalf("injected=%d, want=0", got)
	}
}

func Test_Chaos_Toggles_Injection_When_Mode_Changes(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{WriteFailRate: 1.0})
	f, _ := openChaosFile(t, chaos, "x")

	if _, err := f.WriteAt([]byte("a"), 0); err == nil {
		t.Fatalf("active: expected error")
	}

	chaos.SetMode(ChaosModeNoOp)

	if _, err := f.WriteAt([]byte("b"), 0); err != nil {
		t.Fatalf("noop: %v", err)
	}

	chaos.SetMode(ChaosModeActive)

	if _, err := f.WriteAt([]byte("c"), 0); err == nil {
		t.Fatalf("active again: expected error")
	}
}

func Test_Chaos_Injects_Open_Error_Without_ENOENT_When_Open_Fail_Rate_Is_One(t *testing.T) {
	chaos := NewChaos(NewReal(), 7, ChaosConfig{OpenFailRate: 1.0})

	for i := range 50 {
		_, err := chaos.OpenFile(filepath.Join(t.TempDir(), "f"), os.O_RDWR|os.O_CREATE, 0o600)
		if err == nil {
			t.Fatalf("iteration %d: expected error", i)
		}

		if errors.Is(err, syscall.ENOENT) {
			t.Fatalf("chaos must never inject ENOENT: %v", err)
		}

		if !IsChaosErr(err) {
			t.Fatalf("err should be marked as injected: %v", err)
		}
	}

	if got, want := chaos.Stats().OpenFails, int64(50); got != want {
		t.Fatalf("OpenFails=%d, want=%d", got, want)
	}
}

func Test_Chaos_ReadAt_Returns_EIO_And_Zero_Bytes_When_Read_Fail_Rate_Is_One(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{ReadFailRate: 1.0})
	f, _ := openChaosFile(t, chaos, "abcdef")

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)

	if got, want := n, 0; got != want {
		t.Fatalf("n=%d, want=%d", got, want)
	}

	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("err=%v, want EIO", err)
	}

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err should be *os.PathError, got %T", err)
	}
}

func Test_Chaos_ReadAt_Returns_Real_Prefix_With_Error_When_Partial(t *testing.T) {
	chaos := NewChaos(NewReal(), 3, ChaosConfig{PartialReadRate: 1.0})
	f, _ := openChaosFile(t, chaos, "abcdefghij")

	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 0)

	if n <= 0 || n >= len(buf) {
		t.Fatalf("n=%d, want 0 < n < %d", n, len(buf))
	}

	if err == nil {
		t.Fatalf("short ReadAt must return an error")
	}

	if got, want := string(buf[:n]), "abcdefghij"[:n]; got != want {
		t.Fatalf("prefix=%q, want=%q", got, want)
	}
}

func Test_Chaos_ReadAt_Passes_EOF_Through_Without_Counting_A_Fault(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{TraceCapacity: 4})
	f, _ := openChaosFile(t, chaos, "ab")

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)

	if got, want := n, 2; got != want {
		t.Fatalf("n=%d, want=%d", got, want)
	}

	if !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v, want io.EOF", err)
	}

	if IsChaosErr(err) {
		t.Fatalf("EOF must not be marked injected")
	}

	events := chaos.TraceEvents()
	last := events[len(events)-1]

	if got, want := last.Kind, "eof"; got != want {
		t.Fatalf("trace kind=%q, want=%q", got, want)
	}
}

func Test_Chaos_WriteAt_Writes_Prefix_When_Partial_Write_Injected(t *testing.T) {
	chaos := NewChaos(NewReal(), 5, ChaosConfig{PartialWriteRate: 1.0, ShortWriteRate: 1.0})
	f, path := openChaosFile(t, chaos, "")

	n, err := f.WriteAt([]byte("0123456789"), 0)
	if n <= 0 || n >= 10 {
		t.Fatalf("n=%d, want 0 < n < 10", n)
	}

	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("err=%v, want io.ErrShortWrite", err)
	}

	got, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("ReadFile: %v", readErr)
	}

	if want := "0123456789"[:n]; string(got) != want {
		t.Fatalf("on disk=%q, want=%q", got, want)
	}
}

func Test_Chaos_Seek_Fails_Without_Moving_Offset_When_Seek_Fail_Rate_Is_One(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{SeekFailRate: 1.0})
	f, _ := openChaosFile(t, chaos, "abc")

	if _, err := f.Seek(2, io.SeekStart); !errors.Is(err, syscall.EIO) {
		t.Fatalf("err=%v, want EIO", err)
	}

	chaos.SetMode(ChaosModeNoOp)

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}

	if got, want := pos, int64(0); got != want {
		t.Fatalf("pos=%d, want=%d", got, want)
	}
}

func Test_Chaos_Close_Releases_Descriptor_When_Close_Error_Injected(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{CloseFailRate: 1.0})

	path := filepath.Join(t.TempDir(), "c.bin")

	f, err := chaos.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := f.Close(); !IsChaosErr(err) {
		t.Fatalf("err=%v, want injected close error", err)
	}

	// A second close on the real descriptor reports it is already closed.
	cf, ok := f.(*chaosFile)
	if !ok {
		t.Fatalf("file type=%T, want *chaosFile", f)
	}

	if err := cf.f.Close(); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("underlying close err=%v, want os.ErrClosed", err)
	}
}

func Test_Chaos_Trace_Keeps_Most_Recent_Events_When_Capacity_Exceeded(t *testing.T) {
	chaos := NewChaos(NewReal(), 1, ChaosConfig{TraceCapacity: 3})
	f, _ := openChaosFile(t, chaos, "abcdef")

	buf := make([]byte, 1)
	for off := range int64(5) {
		if _, err := f.ReadAt(buf, off); err != nil {
			t.Fatalf("ReadAt(%d): %v", off, err)
		}
	}

	events := chaos.TraceEvents()
	if got, want := len(events), 3; got != want {
		t.Fatalf("len(events)=%d, want=%d", got, want)
	}

	for i := 1; i < len(events); i++ {
		if events[i].Seq != events[i-1].Seq+1 {
			t.Fatalf("events out of order: %v", events)
		}
	}

	if got := chaos.Trace(); !strings.Contains(got, "off=4") {
		t.Fatalf("trace missing newest event:\n%s", got)
	}
}

func Test_Chaos_Is_Deterministic_When_Seed_Is_Fixed(t *testing.T) {
	run := func() []bool {
		chaos := NewChaos(NewReal(), 99, ChaosConfig{ReadFailRate: 0.5})
		f, _ := openChaosFile(t, chaos, "abcdef")

		outcomes := make([]bool, 20)
		buf := make([]byte, 1)

		for i := range outcomes {
			_, err := f.ReadAt(buf, 0)
			outcomes[i] = err == nil
		}

		return outcomes
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("outcome %d differs between runs with the same seed", i)
		}
	}
}
