package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/artie-labs/medallion/lib/awslib"
)

var ErrNotExist = errors.New("location does not exist")

type File struct {
	Location Location
	Size     int64
	ModTime  time.Time
}

type FileSystem interface {
	// List returns the file at [loc] or every file below it, sorted by path. Hidden files (`_` or `.` prefixed) are skipped.
	List(ctx context.Context, loc Location) ([]File, error)
	// Read returns [ErrNotExist] when nothing is stored at [loc].
	Read(ctx context.Context, loc Location) ([]byte, error)
	Write(ctx context.Context, loc Location, contents []byte) error
}

// S3API is the part of [awslib.S3Client] the file system needs.
type S3API interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]awslib.Object, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, contents []byte) error
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

type localFileSystem struct{}

func (localFileSystem) List(_ context.Context, loc Location) ([]File, error) {
	info, err := os.Stat(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", loc, ErrNotExist)
		}
		return nil, err
	}

	if !info.IsDir() {
		return []File{{Location: loc, Size: info.Size(), ModTime: info.ModTime()}}, nil
	}

	var files []File
	err = filepath.WalkDir(loc.Path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path != loc.Path && isHidden(entry.Name()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			return nil
		}

		entryInfo, err := entry.Info()
		if err != nil {
			return err
		}

		files = append(files, File{Location: Location{Scheme: Local, Path: path}, Size: entryInfo.Size(), ModTime: entryInfo.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", loc, err)
	}

	return files, nil
}

func (localFileSystem) Read(_ context.Context, loc Location) ([]byte, error) {
	contents, err := os.ReadFile(loc.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", loc, ErrNotExist)
	}

	return contents, err
}

// Write replaces the file atomically.
func (localFileSystem) Write(_ context.Context, loc Location, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", loc, err)
	}

	tmp := loc.Path + ".tmp"
	if err := os.WriteFile(tmp, contents, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", loc, err)
	}

	return os.Rename(tmp, loc.Path)
}

type s3FileSystem struct {
	client S3API
}

func (s s3FileSystem) List(ctx context.Context, loc Location) ([]File, error) {
	objects, err := s.client.ListObjects(ctx, loc.Bucket, loc.Path)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, object := range objects {
		// A prefix of `raw/orders` should not match `raw/orders_archive/...`.
		rest := strings.TrimPrefix(object.Key, loc.Path)
		if loc.Path != "" && rest != "" && !strings.HasPrefix(rest, "/") {
			continue
		}

		if slices.ContainsFunc(strings.Split(strings.Trim(rest, "/"), "/"), isHidden) {
			continue
		}

		files = append(files, File{
			Location: Location{Scheme: S3, Bucket: loc.Bucket, Path: object.Key},
			Size:     object.Size,
			ModTime:  object.LastModified,
		})
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, ErrNotExist)
	}

	slices.SortFunc(files, func(a, b File) int {
		return strings.Compare(a.Location.Path, b.Location.Path)
	})

	return files, nil
}

func (s s3FileSystem) Read(ctx context.Context, loc Location) ([]byte, error) {
	contents, err := s.client.GetObject(ctx, loc.Bucket, loc.Path)
	if awslib.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", loc, ErrNotExist)
	}

	return contents, err
}

func (s s3FileSystem) Write(ctx context.Context, loc Location, contents []byte) error {
	return s.client.PutObject(ctx, loc.Bucket, loc.Path, contents)
}

// Mux dispatches to the local file system or S3 depending on the location.
type Mux struct {
	local FileSystem
	s3    FileSystem
}

// NewMux returns a file system for both schemes, [s3Client] may be nil when no S3 settings are configured.
func NewMux(s3Client S3API) Mux {
	mux := Mux{local: localFileSystem{}}
	if s3Client != nil {
		mux.s3 = s3FileSystem{client: s3Client}
	}

	return mux
}

func (m Mux) pick(loc Location) (FileSystem, error) {
	if !loc.IsS3() {
		return m.local, nil
	}

	if m.s3 == nil {
		return nil, fmt.Errorf("cannot access %s, s3 settings are not configured", loc)
	}

	return m.s3, nil
}

func (m Mux) List(ctx context.Context, loc Location) ([]File, error) {
	fileSystem, err := m.pick(loc)
	if err != nil {
		return nil, err
	}

	return fileSystem.List(ctx, loc)
}

func (m Mux) Read(ctx context.Context, loc Location) ([]byte, error) {
	fileSystem, err := m.pick(loc)
	if err != nil {
		return nil, err
	}

	return fileSystem.Read(ctx, loc)
}

func (m Mux) Write(ctx context.Context, loc Location, contents []byte) error {
	fileSystem, err := m.pick(loc)
	if err != nil {
		return err
	}

	return fileSystem.Write(ctx, loc, contents)
}
