package repo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"relaydesk/pkg/models"
)

// KnowledgeFileRepository handles knowledge file records
type KnowledgeFileRepository struct {
	db *gorm.DB
}

// NewKnowledgeFileRepository creates a new knowledge file repository
func NewKnowledgeFileRepository(db *gorm.DB) *KnowledgeFileRepository {
	return &KnowledgeFileRepository{db: db}
}

// Create creates a new knowledge file record
func (r *KnowledgeFileRepository) Create(file *models.KnowledgeFile) error {
	return r.db.Create(file).Error
}

// GetByID gets a knowledge file by ID
func (r *KnowledgeFileRepository) GetByID(id uuid.UUID) (*models.KnowledgeFile, error) {
	var file models.KnowledgeFile
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// List lists knowledge files, most recent first.
func (r *KnowledgeFileRepository) List(limit, offset int) ([]models.KnowledgeFile, error) {
	var files []models.KnowledgeFile
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&files).Error
	return files, err
}

// Delete removes a knowledge file record
func (r *KnowledgeFileRepository) Delete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(&models.KnowledgeFile{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count returns the number of knowledge files.
func (r *KnowledgeFileRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.KnowledgeFile{}).Count(&count).Error
	return count, err
}
