package memory

import "github.com/innermaps/coachmem-go/pkg/storage"

// toStorageRecord converts a memory.Record to a storage.Record.
func toStorageRecord(r *Record) *storage.Record {
	if r == nil {
		return nil
	}
	return &storage.Record{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Content:    r.Content,
		SourceID:   r.SourceID,
		SourceType: string(r.SourceType),
		Importance: int(r.Importance),
		IsPinned:   r.IsPinned,
		IsArchived: r.IsArchived,
		UserNotes:  r.UserNotes,
		Summary:    r.Summary,
		Embedding:  r.Embedding,
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// fromStorageRecord converts a storage.Record to a memory.Record.
func fromStorageRecord(r *storage.Record) *Record {
	if r == nil {
		return nil
	}
	return &Record{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Content:    r.Content,
		SourceID:   r.SourceID,
		SourceType: SourceType(r.SourceType),
		Importance: Importance(r.Importance),
		IsPinned:   r.IsPinned,
		IsArchived: r.IsArchived,
		UserNotes:  r.UserNotes,
		Summary:    r.Summary,
		Embedding:  r.Embedding,
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// fromStorageRecords converts a slice of storage records.
func fromStorageRecords(records []*storage.Record) []*Record {
	result := make([]*Record, len(records))
	for i, r := range records {
		result[i] = fromStorageRecord(r)
	}
	return result
}

// toStorageUpdateFields converts a memory.UpdateFields to the storage layer's
// partial field set.
func toStorageUpdateFields(fields *UpdateFields) *storage.UpdateFields {
	sf := &storage.UpdateFields{
		Content:   fields.Content,
		UserNotes: fields.UserNotes,
		Summary:   fields.Summary,
	}
	if fields.Importance != nil {
		importance := int(*fields.Importance)
		sf.Importance = &importance
	}
	return sf
}
