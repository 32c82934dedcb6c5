package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// MimetypeMember must stay first and stored in an EPUB container.
const MimetypeMember = "mimetype"

var ErrMemberNotFound = errors.New("archive member not found")

type ArchiveEntry struct {
	Name    string
	Content []byte
}

// Archiver rewrites a zip archive with extra members. Existing members are
// copied without recompression; an appended member replaces any existing
// member of the same name.
type Archiver struct {
	source  *zip.Reader
	entries []ArchiveEntry
	modTime time.Time
}

func NewArchiver(data []byte) (*Archiver, error) {
	source, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return &Archiver{
		source:  source,
		entries: make([]ArchiveEntry, 0),
		modTime: time.Now(),
	}, nil
}

// AppendContent adds content directly to the archive
func (a *Archiver) AppendContent(content []byte, filePathInArchive string) error {
	if filePathInArchive == "" {
		return fmt.Errorf("filePathInArchive cannot be empty")
	}

	// zip names are slash separated and relative
	cleanPath := strings.TrimPrefix(path.Clean(filePathInArchive), "/")
	if cleanPath == "" || cleanPath == "." || cleanPath == MimetypeMember {
		return fmt.Errorf("invalid member name: %s", filePathInArchive)
	}

	for i, e := range a.entries {
		if e.Name == cleanPath {
			a.entries[i].Content = content
			return nil
		}
	}
	a.entries = append(a.entries, ArchiveEntry{Name: cleanPath, Content: content})
	return nil
}

// Bytes writes the rewritten archive.
func (a *Archiver) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the rewritten archive to out.
func (a *Archiver) Write(out io.Writer) error {
	outZip := zip.NewWriter(out)

	if err := outZip.SetComment(a.source.Comment); err != nil {
		return fmt.Errorf("error setting output file comment: %w", err)
	}

	replaced := make(map[string]bool, len(a.entries))
	for _, e := range a.entries {
		replaced[e.Name] = true
	}

	// mimetype first, as found in the source
	for _, f := range a.source.File {
		if f.Name == MimetypeMember {
			if err := outZip.Copy(f); err != nil {
				return fmt.Errorf("error copying %s: %w", f.Name, err)
			}
		}
	}

	for _, f := range a.source.File {
		if f.Name == MimetypeMember || replaced[f.Name] {
			continue
		}
		if err := outZip.Copy(f); err != nil {
			return fmt.Errorf("error copying %s: %w", f.Name, err)
		}
	}

	for _, e := range a.entries {
		w, err := outZip.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: a.modTime,
		})
		if err != nil {
			return fmt.Errorf("error appending %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Content); err != nil {
			return fmt.Errorf("error writing %s: %w", e.Name, err)
		}
	}

	if err := outZip.Close(); err != nil {
		return fmt.Errorf("error finalizing output zip file: %w", err)
	}
	return nil
}

// InsertMember returns data with member name set to content.
func InsertMember(data []byte, name string, content []byte) ([]byte, error) {
	a, err := NewArchiver(data)
	if err != nil {
		return nil, err
	}
	if err := a.AppendContent(content, name); err != nil {
		return nil, err
	}
	return a.Bytes()
}

// ReadMember returns the content of member name.
func ReadMember(data []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	f, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	defer f.Close()
	return io.ReadAll(f)
}
