package fileutils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicSameDir_ReplacesContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.json")

	if err := WriteFileAtomicSameDir(p, []byte("first"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFileAtomicSameDir(p, []byte("second"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second" {
		t.Fatalf("content=%q", string(b))
	}

	ents, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("temp files left behind: %v", ents)
	}
}

func TestWriteJSONFileAtomic_AppendsNewline(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "v.json")
	if err := WriteJSONFileAtomic(p, map[string]int{"a": 1}, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("content=%q", string(b))
	}
}

func TestTruncateRunes_KeepsHangulIntact(t *testing.T) {
	t.Parallel()

	got := TruncateRunes("가나다라마", 3, "...")
	if got != "가나다..." {
		t.Fatalf("got=%q", got)
	}
	if got := TruncateRunes("가나", 3, "..."); got != "가나" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := TruncateRunes("가나다", 0, "..."); got != "가나다" {
		t.Fatalf("max=0 should disable truncation: %q", got)
	}
}

func TestDecodeModelJSON_ExtractsObjectFromWrappedText(t *testing.T) {
	t.Parallel()

	type out struct {
		Relevant bool `json:"relevant"`
	}
	var o out
	if err := DecodeModelJSON("here you go:\n```json\n{\"relevant\": true}\n```", &o); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if !o.Relevant {
		t.Fatalf("Relevant=false")
	}
}

func TestDecodeModelJSON_MissingClosingBrace_ReturnsUnexpectedEOF(t *testing.T) {
	t.Parallel()

	var m map[string]any
	err := DecodeModelJSON("{\"a\": 1", &m)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v", err)
	}
}

func TestDecodeJSONRecords_ArrayAndLines(t *testing.T) {
	t.Parallel()

	type doc struct {
		Title string `json:"title"`
	}

	arr, err := DecodeJSONRecords[doc](strings.NewReader(`[{"title":"a"},{"title":"b"}]`))
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(arr) != 2 || arr[1].Title != "b" {
		t.Fatalf("arr=%v", arr)
	}

	lines, err := DecodeJSONRecords[doc](strings.NewReader("{\"title\":\"a\"}\n\n{\"title\":\"c\"}\n"))
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 2 || lines[1].Title != "c" {
		t.Fatalf("lines=%v", lines)
	}

	if _, err := DecodeJSONRecords[doc](strings.NewReader("{\"title\":")); err == nil {
		t.Fatalf("expected error for truncated line")
	}
}
