package listing

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalizeStructured(t *testing.T) {
	res := FromRecords([]Record{
		{Name: ".", Facts: map[string]string{"type": "cdir"}},
		{Name: "..", Facts: map[string]string{"type": "pdir"}},
		{Name: "readme.TXT", Facts: map[string]string{"type": "file", "size": "42", "modify": "20240102030405"}},
		{Name: "Assets", Facts: map[string]string{"Type": "dir", "modify": "20231231235959.123"}},
		{Name: "b.bin", Facts: map[string]string{"type": "file", "size": "7", "unique": "ignored"}},
		{Name: "link", Facts: map[string]string{"type": "OS.unix=symlink"}},
		{Name: "archive", Facts: map[string]string{"type": "dir", "modify": "2024"}},
	})

	entries := Normalize(res)

	want := []string{"archive", "Assets", "b.bin", "link", "readme.TXT"}
	if got := names(entries); !equalStrings(got, want) {
		t.Fatalf("order mismatch: got %v, want %v", got, want)
	}

	t.Run("Core Functionality: directory facts", func(t *testing.T) {
		assets := entries[1]
		if !assets.IsDir() {
			t.Error("Expected Assets to be a directory")
		}
		if assets.ModifiedAt != "2023-12-31 23:59:59" {
			t.Errorf("Expected normalized time, got %q", assets.ModifiedAt)
		}
		if assets.Size != nil {
			t.Errorf("Expected no size, got %d", *assets.Size)
		}
	})

	t.Run("Core Functionality: file facts", func(t *testing.T) {
		readme := entries[4]
		if readme.IsDir() {
			t.Error("Expected readme.TXT to be a file")
		}
		if readme.Size == nil || *readme.Size != 42 {
			t.Errorf("Expected size 42, got %v", readme.Size)
		}
		if readme.ModifiedAt != "2024-01-02 03:04:05" {
			t.Errorf("Expected normalized time, got %q", readme.ModifiedAt)
		}
	})

	t.Run("Edge Case: short modify kept raw", func(t *testing.T) {
		if entries[0].ModifiedAt != "2024" {
			t.Errorf("Expected raw modify, got %q", entries[0].ModifiedAt)
		}
	})

	t.Run("Edge Case: unknown type is a file", func(t *testing.T) {
		if entries[3].IsDir() {
			t.Error("Expected symlink type to map to file")
		}
	})
}

func TestParseLegacyLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		ok       bool
		want     string
		dir      bool
		size     *uint64
		modified string
	}{
		{
			name:     "directory line",
			line:     "drwxr-xr-x 2 user group 4096 Jan 1 00:00 subdir",
			ok:       true,
			want:     "subdir",
			dir:      true,
			modified: "Jan 1 00:00",
		},
		{
			name:     "file with spaces in name",
			line:     "-rw-r--r--   1 owner staff  1500 Mar 15  2023 my  report.txt",
			ok:       true,
			want:     "my  report.txt",
			size:     ptr(1500),
			modified: "Mar 15 2023",
		},
		{
			name:     "trailing carriage return",
			line:     "-rw-r--r-- 1 u g 10 Feb 2 10:00 a.txt\r",
			ok:       true,
			want:     "a.txt",
			size:     ptr(10),
			modified: "Feb 2 10:00",
		},
		{
			name:     "unparseable size",
			line:     "-rw-r--r-- 1 u g big Feb 2 10:00 a.txt",
			ok:       true,
			want:     "a.txt",
			modified: "Feb 2 10:00",
		},
		{
			name:     "vertical tab and form feed separators",
			line:     "-rw-r--r--\v1 u g\f10 Feb 2 10:00\r\ta.txt",
			ok:       true,
			want:     "a.txt",
			size:     ptr(10),
			modified: "Feb 2 10:00",
		},
		{name: "too few tokens", line: "total 24"},
		{name: "eight tokens", line: "-rw-r--r-- 1 u g 10 Feb 2 10:00"},
		{name: "blank", line: "   "},
		{name: "dot", line: "drwxr-xr-x 2 u g 4096 Jan 1 00:00 ."},
		{name: "dotdot", line: "drwxr-xr-x 2 u g 4096 Jan 1 00:00 .."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseLegacyLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if e.Name != tt.want {
				t.Errorf("name = %q, want %q", e.Name, tt.want)
			}
			if e.IsDir() != tt.dir {
				t.Errorf("dir = %v, want %v", e.IsDir(), tt.dir)
			}
			if (e.Size == nil) != (tt.size == nil) || (e.Size != nil && *e.Size != *tt.size) {
				t.Errorf("size = %v, want %v", e.Size, tt.size)
			}
			if e.ModifiedAt != tt.modified {
				t.Errorf("modified = %q, want %q", e.ModifiedAt, tt.modified)
			}
		})
	}
}

func ptr(v uint64) *uint64 { return &v }

func TestNormalizeLegacySortsDirectoriesFirst(t *testing.T) {
	res := FromLines([]string{
		"total 12",
		"-rw-r--r-- 1 u g 5 Jan 1 00:00 beta.txt",
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 zeta",
		"-rw-r--r-- 1 u g 5 Jan 1 00:00 Alpha.txt",
		"drwxr-xr-x 2 u g 4096 Jan 1 00:00 Docs",
		"",
	})

	got := names(Normalize(res))
	want := []string{"Docs", "zeta", "Alpha.txt", "beta.txt"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSortIsStable(t *testing.T) {
	entries := []Entry{
		{Name: "File", Kind: File},
		{Name: "dir", Kind: Directory},
		{Name: "file", Kind: File},
		{Name: "FILE", Kind: File},
		{Name: "Dir", Kind: Directory},
	}
	Sort(entries)

	want := []string{"dir", "Dir", "File", "file", "FILE"}
	if got := names(entries); !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

type stubSource struct {
	records  []Record
	factsErr error
	lines    []string
	linesErr error
	calls    []string
}

func (s *stubSource) ListFacts() ([]Record, error) {
	s.calls = append(s.calls, "facts")
	return s.records, s.factsErr
}

func (s *stubSource) ListLines() ([]string, error) {
	s.calls = append(s.calls, "lines")
	return s.lines, s.linesErr
}

func TestFetch(t *testing.T) {
	log := zerolog.Nop()

	t.Run("Core Functionality: structured first", func(t *testing.T) {
		src := &stubSource{records: []Record{{Name: "a", Facts: map[string]string{"type": "file"}}}}
		entries, err := Fetch(src, log)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || len(src.calls) != 1 {
			t.Errorf("unexpected result %v calls %v", entries, src.calls)
		}
	})

	t.Run("Core Functionality: legacy fallback", func(t *testing.T) {
		src := &stubSource{
			factsErr: errors.New("500 MLSD not understood"),
			lines:    []string{"drwxr-xr-x 2 user group 4096 Jan 1 00:00 subdir"},
		}
		entries, err := Fetch(src, log)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name != "subdir" || !entries[0].IsDir() {
			t.Errorf("Expected subdir directory entry, got %+v", entries)
		}
		if !equalStrings(src.calls, []string{"facts", "lines"}) {
			t.Errorf("unexpected calls %v", src.calls)
		}
	})

	t.Run("Error Handling: both strategies fail", func(t *testing.T) {
		linesErr := errors.New("connection reset")
		src := &stubSource{factsErr: errors.New("unsupported"), linesErr: linesErr}
		_, err := Fetch(src, log)
		if !errors.Is(err, ErrListing) {
			t.Errorf("Expected ErrListing, got %v", err)
		}
		if !errors.Is(err, linesErr) {
			t.Errorf("Expected underlying cause to be kept, got %v", err)
		}
	})
}
