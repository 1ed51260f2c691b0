package vectorstore

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeagents/internal/models"
)

// Gorm stores vectors in the vector_records table and ranks them in process.
type Gorm struct {
	db *gorm.DB
	// MaxScan bounds how many rows one query loads.
	MaxScan int
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, MaxScan: 5000}
}

func (g *Gorm) Add(ctx context.Context, collection string, docs []Document) error {
	if g == nil || g.db == nil || len(docs) == 0 {
		return nil
	}
	rows := make([]models.VectorRecord, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, models.VectorRecord{
			Collection: collection,
			DocID:      d.ID,
			Content:    d.Content,
			Metadata:   models.EncodeJSON(d.Metadata),
			Embedding:  models.EncodeJSON(d.Embedding),
			Dims:       len(d.Embedding),
		})
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding", "dims", "updated_at"}),
	}).Create(&rows).Error
}

func (g *Gorm) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]any) ([]Match, error) {
	if g == nil || g.db == nil {
		return nil, nil
	}
	var rows []models.VectorRecord
	if err := g.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where("dims = ?", len(embedding)).
		Order("id desc").
		Limit(g.MaxScan).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	docs, err := toDocuments(rows)
	if err != nil {
		return nil, err
	}
	return rank(docs, embedding, k, filter), nil
}

func (g *Gorm) Get(ctx context.Context, collection string, ids []string) ([]Document, error) {
	if g == nil || g.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var rows []models.VectorRecord
	if err := g.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where("doc_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDocuments(rows)
}

func (g *Gorm) Delete(ctx context.Context, collection string, ids []string) error {
	if g == nil || g.db == nil || len(ids) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where("doc_id IN ?", ids).
		Delete(&models.VectorRecord{}).Error
}

func (g *Gorm) Count(ctx context.Context, collection string) (int64, error) {
	if g == nil || g.db == nil {
		return 0, nil
	}
	var n int64
	err := g.db.WithContext(ctx).Model(&models.VectorRecord{}).Where("collection = ?", collection).Count(&n).Error
	return n, err
}

func toDocuments(rows []models.VectorRecord) ([]Document, error) {
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		d := Document{ID: row.DocID, Content: row.Content}
		if err := json.Unmarshal(row.Embedding, &d.Embedding); err != nil {
			return nil, err
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &d.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}
