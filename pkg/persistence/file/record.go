package file

import (
	"context"
	"errors"
	"os"
	"sort"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

const recordsDir = "records"

// RecordRepository stores generated records as JSON files.
type RecordRepository struct {
	root string
}

func (r *RecordRepository) List(_ context.Context, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	ids, err := listIDs(r.root, recordsDir)
	if err != nil {
		return []*models.Record{}, nil
	}

	records := make([]*models.Record, 0, len(ids))

	for _, id := range ids {
		var record models.Record
		if err := readEntity(r.root, recordsDir, id, &record); err != nil {
			return nil, persistence.NewStoreError("List", "record", id, err)
		}

		if opts.PipelineID != "" && record.PipelineID != opts.PipelineID {
			continue
		}

		if opts.JobID != "" && record.JobID != opts.JobID {
			continue
		}

		if opts.Status != nil && record.Status != *opts.Status {
			continue
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return paginate(records, opts.Offset, opts.Limit), nil
}

func paginate(records []*models.Record, offset, limit int) []*models.Record {
	if offset >= len(records) {
		return []*models.Record{}
	}

	records = records[offset:]

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records
}

func (r *RecordRepository) GetByID(_ context.Context, id string) (*models.Record, error) {
	var record models.Record

	err := readEntity(r.root, recordsDir, id, &record)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStoreError("GetByID", "record", id, persistence.ErrRecordNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "record", id, err)
	}

	return &record, nil
}

func (r *RecordRepository) Save(_ context.Context, record *models.Record) error {
	if err := writeEntity(r.root, recordsDir, record.ID, record); err != nil {
		return persistence.NewStoreError("Save", "record", record.ID, err)
	}

	return nil
}

func (r *RecordRepository) Delete(_ context.Context, id string) error {
	err := removeEntity(r.root, recordsDir, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewStoreError("Delete", "record", id, persistence.ErrRecordNotFound)
		}

		return persistence.NewStoreError("Delete", "record", id, err)
	}

	return nil
}

func (r *RecordRepository) DeleteAll(ctx context.Context) (int, error) {
	ids, err := listIDs(r.root, recordsDir)
	if err != nil {
		return 0, nil
	}

	deleted := 0

	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return deleted, err
		}

		deleted++
	}

	return deleted, nil
}
