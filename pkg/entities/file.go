package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads snapshots from a JSON file on every call, so a refreshed
// export is picked up by the next batch without a restart. The CRM sync job
// owns writing the file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) All(_ context.Context) ([]*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity snapshots: %w", err)
	}

	var snapshots []*Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode entity snapshots: %w", err)
	}

	return snapshots, nil
}

func (f *FileSource) GetByID(ctx context.Context, entityID string) (*Snapshot, error) {
	snapshots, err := f.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range snapshots {
		if s.EntityID == entityID {
			return s, nil
		}
	}

	return nil, ErrEntityNotFound
}
