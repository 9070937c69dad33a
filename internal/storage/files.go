package storage

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// FileManager owns the on-disk layout for uploaded media and generated PDFs.
type FileManager struct {
	baseDir        string
	mediaDir       string
	pdfDir         string
	maxUploadBytes int64
}

var mimeExtensionFallback = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// SavedUpload describes a stored upload.
type SavedUpload struct {
	Filename    string
	Path        string
	SizeBytes   int64
	ContentHash string
}

func NewFileManager(baseDir string, maxUploadBytes int64) (*FileManager, error) {
	fm := &FileManager{
		baseDir:        baseDir,
		mediaDir:       filepath.Join(baseDir, "media"),
		pdfDir:         filepath.Join(baseDir, "pdf"),
		maxUploadBytes: maxUploadBytes,
	}

	dirs := []string{fm.baseDir, fm.mediaDir, fm.pdfDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// SaveUploadedMedia writes the uploaded file under a fresh UUID name and
// returns its stored location, size and blake3 content hash.
func (fm *FileManager) SaveUploadedMedia(file multipart.File, filename string) (SavedUpload, error) {
	sample := make([]byte, 512)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		return SavedUpload{}, fmt.Errorf("read media sample: %w", err)
	}
	sample = sample[:n]

	ext := normalizeExtension(filename)
	contentType := strings.ToLower(http.DetectContentType(sample))

	if ext == "" {
		ext = fallbackExtension(contentType)
	}
	if ext == "" {
		ext = ".bin"
	}

	if contentType != "application/octet-stream" &&
		!strings.HasPrefix(contentType, "audio/") &&
		!strings.HasPrefix(contentType, "video/") {
		return SavedUpload{}, fmt.Errorf("unsupported media type %s", contentType)
	}

	id := uuid.NewString()
	filenameOnDisk := fmt.Sprintf("%s%s", id, ext)
	path := filepath.Join(fm.mediaDir, filenameOnDisk)

	size, hash, err := fm.writeWithLimit(path, sample, file)
	if err != nil {
		return SavedUpload{}, err
	}

	return SavedUpload{
		Filename:    filenameOnDisk,
		Path:        path,
		SizeBytes:   size,
		ContentHash: hash,
	}, nil
}

func (fm *FileManager) PDFPath(id string) string {
	return filepath.Join(fm.pdfDir, fmt.Sprintf("%s.pdf", id))
}

// writeWithLimit streams the upload to disk while enforcing the configured
// size cap and hashing the content.
func (fm *FileManager) writeWithLimit(path string, sample []byte, file multipart.File) (int64, string, error) {
	if fm.maxUploadBytes > 0 && int64(len(sample)) > fm.maxUploadBytes {
		return 0, "", fmt.Errorf("media file exceeds maximum size")
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("create media file: %w", err)
	}

	hasher := blake3.New(32, nil)
	total := int64(0)

	cleanup := func(err error) (int64, string, error) {
		out.Close()
		os.Remove(path)
		return 0, "", err
	}

	if len(sample) > 0 {
		if _, err := out.Write(sample); err != nil {
			return cleanup(fmt.Errorf("write media sample: %w", err))
		}
		hasher.Write(sample)
		total += int64(len(sample))
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxUploadBytes > 0 && total > fm.maxUploadBytes {
				return cleanup(fmt.Errorf("media file exceeds maximum size"))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write media file: %w", werr))
			}
			hasher.Write(buf[:n])
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read media content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, "", fmt.Errorf("close media file: %w", err)
	}

	return total, fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func normalizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" {
		return ext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func fallbackExtension(contentType string) string {
	if ext, ok := mimeExtensionFallback[contentType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
