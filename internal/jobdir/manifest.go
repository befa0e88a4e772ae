package jobdir

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/models"
)

// ContentTypeByName looks up a MIME type from the file extension,
// defaulting to application/octet-stream.
func ContentTypeByName(name string) string {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		return "application/octet-stream"
	}
	// mime.TypeByExtension may append parameters ("; charset=utf-8")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return contentType
}

// BuildManifest walks the job's artifacts directory and describes every
// regular file: POSIX-style relative path, SHA-256, size, and MIME type.
// Directories never appear as entries. Unreadable files are skipped.
func (d *Dir) BuildManifest(jobID string) []models.ArtifactEntry {
	base := d.ArtifactsDir(jobID)
	manifest := []models.ArtifactEntry{}

	filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		name := filepath.ToSlash(rel)

		info, err := entry.Info()
		if err != nil {
			return nil
		}
		digest, err := hashFile(path)
		if err != nil {
			return nil
		}

		manifest = append(manifest, models.ArtifactEntry{
			Name:        name,
			Path:        name,
			SHA256:      digest,
			SizeBytes:   info.Size(),
			ContentType: ContentTypeByName(name),
			CreatedAt:   common.NowUTC(),
		})
		return nil
	})

	return manifest
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
