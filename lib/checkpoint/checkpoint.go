package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/storage"
)

const fileName = "checkpoint.json"

type state struct {
	NextBatchID    int64    `json:"nextBatchId"`
	ProcessedFiles []string `json:"processedFiles,omitempty"`
	// SourceVersion is the highest commit stamp of an upstream table that was merged.
	SourceVersion int64 `json:"sourceVersion,omitempty"`
}

// Store tracks the progress of a source. Without a location it only lives in memory, so every run starts over.
type Store struct {
	mu        sync.Mutex
	fs        storage.FileSystem
	location  *storage.Location
	state     state
	processed map[string]bool
}

// Open loads the checkpoint stored at [checkpointLocation], an empty location yields an in-memory store.
func Open(ctx context.Context, fs storage.FileSystem, checkpointLocation string) (*Store, error) {
	store := &Store{fs: fs, processed: make(map[string]bool)}
	if checkpointLocation == "" {
		return store, nil
	}

	loc, err := storage.ParseLocation(checkpointLocation)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint location: %w", err)
	}

	loc = loc.Join(fileName)
	store.location = &loc

	contents, err := fs.Read(ctx, loc)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(contents, &store.state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", loc, err)
	}

	for _, file := range store.state.ProcessedFiles {
		store.processed[file] = true
	}

	return store, nil
}

// Location returns where the checkpoint is persisted, or an empty string.
func (s *Store) Location() string {
	if s.location == nil {
		return ""
	}

	return s.location.String()
}

func (s *Store) NextBatchID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.NextBatchID
}

func (s *Store) IsProcessed(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[file]
}

func (s *Store) SourceVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SourceVersion
}

// Commit records a finished batch and the files it consumed.
func (s *Store) Commit(ctx context.Context, batchID int64, files []string) error {
	return s.commit(ctx, batchID, files, 0)
}

// CommitVersion records a finished batch that read an upstream table up to [version].
func (s *Store) CommitVersion(ctx context.Context, batchID int64, version int64) error {
	return s.commit(ctx, batchID, nil, version)
}

func (s *Store) commit(ctx context.Context, batchID int64, files []string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := state{
		NextBatchID:    max(s.state.NextBatchID, batchID+1),
		ProcessedFiles: slices.Clone(s.state.ProcessedFiles),
		SourceVersion:  max(s.state.SourceVersion, version),
	}

	for _, file := range files {
		if !s.processed[file] {
			next.ProcessedFiles = append(next.ProcessedFiles, file)
		}
	}
	slices.Sort(next.ProcessedFiles)
	next.ProcessedFiles = slices.Compact(next.ProcessedFiles)

	if s.location != nil {
		contents, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}

		if err = s.fs.Write(ctx, *s.location, contents); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}

	s.state = next
	for _, file := range files {
		s.processed[file] = true
	}

	return nil
}
