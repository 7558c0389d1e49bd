// SPDX-License-Identifier: MIT

package unitd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNullSinkOpensDevNull(t *testing.T) {
	w, r, err := NullSink().openWriter()
	if err != nil {
		t.Fatalf("openWriter: %v", err)
	}
	defer w.Close()
	if r != nil {
		t.Error("NullSink should not produce a read end")
	}
	if w.Name() != os.DevNull {
		t.Errorf("w.Name() = %q, want %q", w.Name(), os.DevNull)
	}
}

func TestFileSinkCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w1, _, err := FileSink(path).openWriter()
	if err != nil {
		t.Fatalf("openWriter (first): %v", err)
	}
	w1.WriteString("first\n")
	w1.Close()

	w2, r, err := FileSink(path).openWriter()
	if err != nil {
		t.Fatalf("openWriter (second): %v", err)
	}
	defer w2.Close()
	if r != nil {
		t.Error("FileSink should not produce a read end")
	}
	w2.WriteString("second\n")

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "first\nsecond\n" {
		t.Errorf("file contents = %q, want append of both writes", string(got))
	}
}

func TestPipeSinkConnectsWriteToRead(t *testing.T) {
	w, r, err := PipeSink().openWriter()
	if err != nil {
		t.Fatalf("openWriter: %v", err)
	}
	defer w.Close()
	defer r.Close()

	if _, err := w.WriteString("hi"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Errorf("read %q, want %q", string(buf[:n]), "hi")
	}
}
