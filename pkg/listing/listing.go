// Package listing turns raw remote directory listings into ordered entries.
//
// Two wire formats are understood: structured per-entry facts (MLSD style,
// "type=dir;size=0;modify=20240101000000; name") and free-form legacy LIST
// lines ("drwxr-xr-x 2 user group 4096 Jan 1 00:00 name").
package listing

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Kind tells files and directories apart
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "dir"
	}
	return "file"
}

// Entry is one normalized directory entry
type Entry struct {
	Name       string
	Kind       Kind
	Size       *uint64 // nil when the listing did not report a size
	ModifiedAt string  // empty when unknown
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == Directory
}

// Record is one structured listing entry: a name and its facts
type Record struct {
	Name  string
	Facts map[string]string
}

// Format identifies which listing strategy produced a Result
type Format int

const (
	Structured Format = iota
	Legacy
)

// Result is a raw listing tagged with its format
type Result struct {
	Format  Format
	Records []Record
	Lines   []string
}

// FromRecords wraps structured records
func FromRecords(records []Record) Result {
	return Result{Format: Structured, Records: records}
}

// FromLines wraps legacy listing lines
func FromLines(lines []string) Result {
	return Result{Format: Legacy, Lines: lines}
}

// Normalize converts a raw listing into entries, directories first, then
// case-insensitive by name.
func Normalize(res Result) []Entry {
	var entries []Entry
	switch res.Format {
	case Structured:
		entries = make([]Entry, 0, len(res.Records))
		for _, rec := range res.Records {
			if e, ok := parseRecord(rec); ok {
				entries = append(entries, e)
			}
		}
	case Legacy:
		entries = make([]Entry, 0, len(res.Lines))
		for _, line := range res.Lines {
			if e, ok := ParseLegacyLine(line); ok {
				entries = append(entries, e)
			}
		}
	}
	Sort(entries)
	return entries
}

// Sort orders entries in place: directories before files, then by lowercased
// name. Equal keys keep their listing order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kind != b.Kind {
			return a.Kind == Directory
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

func parseRecord(rec Record) (Entry, bool) {
	if isDotName(rec.Name) {
		return Entry{}, false
	}

	facts := make(map[string]string, len(rec.Facts))
	for k, v := range rec.Facts {
		facts[strings.ToLower(k)] = v
	}

	e := Entry{Name: rec.Name, Kind: File}
	switch strings.ToLower(facts["type"]) {
	case "dir", "cdir", "pdir":
		e.Kind = Directory
	}
	if size, ok := facts["size"]; ok {
		e.Size = parseSize(size)
	}
	e.ModifiedAt = formatModify(facts["modify"])
	return e, true
}

// ParseLegacyLine parses one LIST line. Lines with fewer than nine fields are
// rejected.
func ParseLegacyLine(line string) (Entry, bool) {
	if strings.TrimSpace(line) == "" {
		return Entry{}, false
	}

	fields := splitFields(line, 9)
	if len(fields) < 9 {
		return Entry{}, false
	}

	name := fields[8]
	if isDotName(name) {
		return Entry{}, false
	}

	e := Entry{
		Name:       name,
		Kind:       File,
		ModifiedAt: fields[5] + " " + fields[6] + " " + fields[7],
	}
	if strings.HasPrefix(line, "d") {
		e.Kind = Directory
	} else {
		e.Size = parseSize(fields[4])
	}
	return e, true
}

// splitFields splits on runs of whitespace into at most n fields; the last
// field keeps the remainder of the line, inner whitespace included.
func splitFields(s string, n int) []string {
	fields := make([]string, 0, n)
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(fields) < n-1 {
		if rest == "" {
			return fields
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			fields = append(fields, rest)
			return fields
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	rest = strings.TrimRight(rest, "\r\n")
	if rest != "" {
		fields = append(fields, rest)
	}
	return fields
}

// formatModify turns YYYYMMDDHHMMSS[.sss] into "YYYY-MM-DD HH:MM:SS"; shorter
// values are returned unchanged.
func formatModify(v string) string {
	if len(v) < 14 {
		return v
	}
	return v[0:4] + "-" + v[4:6] + "-" + v[6:8] + " " + v[8:10] + ":" + v[10:12] + ":" + v[12:14]
}

func parseSize(v string) *uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func isDotName(name string) bool {
	return name == "." || name == ".."
}
