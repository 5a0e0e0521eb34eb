package storage

import (
	"fmt"
	"path"
	"strings"
)

type Scheme string

const (
	Local Scheme = "file"
	S3    Scheme = "s3a"
)

// Location is a storage path, either an absolute local path or an `s3a://bucket/key` URI.
type Location struct {
	Scheme Scheme
	Bucket string
	// Path is the object key for S3 and the absolute path for local files.
	Path string
}

func ParseLocation(uri string) (Location, error) {
	for _, prefix := range []string{"s3a://", "s3://"} {
		if rest, isOk := strings.CutPrefix(uri, prefix); isOk {
			bucket, key, _ := strings.Cut(rest, "/")
			if bucket == "" {
				return Location{}, fmt.Errorf("location %q is missing a bucket", uri)
			}

			return Location{Scheme: S3, Bucket: bucket, Path: strings.Trim(key, "/")}, nil
		}
	}

	if strings.HasPrefix(uri, "/") {
		return Location{Scheme: Local, Path: path.Clean(uri)}, nil
	}

	return Location{}, fmt.Errorf("location %q must be an absolute path or an s3a:// uri", uri)
}

func (l Location) IsS3() bool {
	return l.Scheme == S3
}

func (l Location) Join(parts ...string) Location {
	joined := path.Join(append([]string{l.Path}, parts...)...)
	if l.IsS3() {
		joined = strings.TrimPrefix(joined, "/")
	}

	return Location{Scheme: l.Scheme, Bucket: l.Bucket, Path: joined}
}

// Base returns the last element of the path.
func (l Location) Base() string {
	return path.Base(l.Path)
}

func (l Location) String() string {
	if l.IsS3() {
		return fmt.Sprintf("s3a://%s/%s", l.Bucket, l.Path)
	}

	return l.Path
}
