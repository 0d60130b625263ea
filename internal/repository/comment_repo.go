package repository

import (
	"context"
	"errors"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CommentRepository interface {
	// ListByFile returns a file's comments oldest first
	ListByFile(ctx context.Context, fileID string) ([]*domain.Comment, error)

	// FindByID returns common.ErrCommentNotFound when missing
	FindByID(ctx context.Context, id uint) (*domain.Comment, error)

	Create(ctx context.Context, comment *domain.Comment) error

	// UpdateContent overwrites content and parent (nil clears it)
	UpdateContent(ctx context.Context, id uint, content string, parentID *uint) error

	// SetDeleted flags the comment as deleted, keeping its content
	SetDeleted(ctx context.Context, id uint) error

	// UpdateVotes writes votes only if the row is still at version. It reports
	// whether the write won.
	UpdateVotes(ctx context.Context, id uint, version int, votes []domain.Vote) (bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) ListByFile(ctx context.Context, fileID string) ([]*domain.Comment, error) {
	comments := make([]*domain.Comment, 0)
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if c.Votes == nil {
			c.Votes = datatypes.JSONSlice[domain.Vote]{}
		}
	}
	return comments, nil
}

func (r *commentRepository) FindByID(ctx context.Context, id uint) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrCommentNotFound
		}
		return nil, err
	}
	if comment.Votes == nil {
		comment.Votes = datatypes.JSONSlice[domain.Vote]{}
	}
	return &comment, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if comment.Votes == nil {
		comment.Votes = datatypes.JSONSlice[domain.Vote]{}
	}
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string, parentID *uint) error {
	return r.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"parent_id": parentID,
		}).Error
}

func (r *commentRepository) SetDeleted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ?", id).
		Update("deleted", true).Error
}

func (r *commentRepository) UpdateVotes(ctx context.Context, id uint, version int, votes []domain.Vote) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"votes":     datatypes.JSONSlice[domain.Vote](votes),
			"net_votes": domain.SumVotes(votes),
			"version":   gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
