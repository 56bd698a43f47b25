package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var (
	blobSpaces  = regexp.MustCompile(`\s+`)
	blobInvalid = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// FSBlobStore keeps uploaded files on disk under Root/<owner>/.
type FSBlobStore struct {
	Root  string
	Clock func() time.Time
}

// NewFSBlobStore creates a blob store rooted at root.
func NewFSBlobStore(root string) *FSBlobStore {
	return &FSBlobStore{Root: root, Clock: time.Now}
}

// Save writes data as <owner>/<name>-<unix ms><ext> and returns the path
// relative to Root. Existing files are never overwritten.
func (b *FSBlobStore) Save(ctx context.Context, ownerID, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	owner := OwnerDir(ownerID)
	ext := strings.ToLower(filepath.Ext(fileName))
	base := sanitizeSegment(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)), "file")
	if blobInvalid.MatchString(ext) {
		ext = ""
	}

	dir := filepath.Join(b.Root, owner)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", eris.Wrapf(err, "blob: create directory %s", dir)
	}

	rel := filepath.Join(owner, fmt.Sprintf("%s-%d%s", base, b.now().UnixMilli(), ext))
	f, err := os.OpenFile(filepath.Join(b.Root, rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", eris.Wrapf(err, "blob: create %s", rel)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", eris.Wrapf(err, "blob: write %s", rel)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "blob: close %s", rel)
	}
	return filepath.ToSlash(rel), nil
}

// Read returns the content of a file previously returned by Save.
func (b *FSBlobStore) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, eris.Errorf("blob: path %q escapes root", rel)
	}

	data, err := os.ReadFile(filepath.Join(b.Root, clean))
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", rel)
	}
	return data, nil
}

func (b *FSBlobStore) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock()
}

// OwnerDir is the top-level directory Save files an owner's uploads under.
func OwnerDir(ownerID string) string {
	return sanitizeSegment(ownerID, "anonymous")
}

// sanitizeSegment lowercases s, turns whitespace into underscores and drops
// anything outside [a-z0-9._-].
func sanitizeSegment(s, fallback string) string {
	s = blobSpaces.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ToLower(blobInvalid.ReplaceAllString(s, ""))
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}
