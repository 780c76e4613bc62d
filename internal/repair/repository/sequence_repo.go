package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// SequenceRepository 编号序列仓库
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Ensure creates the sequence when missing and leaves an existing one alone.
func (r *SequenceRepository) Ensure(ctx context.Context, code, prefix string, padding int) error {
	seq := &entity.Sequence{Code: code, Prefix: prefix, Padding: padding, NextNumber: 1}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(seq).Error
}

// NextByCode issues the next number of the named sequence, e.g. "RIP00042".
// The row is locked for the duration so concurrent callers never share a
// number; when called inside a transaction the lock lasts until it ends.
func (r *SequenceRepository) NextByCode(ctx context.Context, code string) (string, error) {
	var out string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq entity.Sequence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).First(&seq).Error; err != nil {
			return translate(err)
		}
		out = fmt.Sprintf("%s%0*d", seq.Prefix, seq.Padding, seq.NextNumber)
		return tx.Model(&entity.Sequence{}).Where("code = ?", code).
			Update("next_number", gorm.Expr("next_number + 1")).Error
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
