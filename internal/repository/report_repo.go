package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"gorm.io/gorm"
)

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Report, error)
	FindAll(ctx context.Context, status string) ([]model.Report, error)
	HasPending(ctx context.Context, reporterID uuid.UUID, targetType string, targetID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	CreateLinkReport(ctx context.Context, report *model.LinkReport) error
	FindLinkReportByID(ctx context.Context, id uuid.UUID) (*model.LinkReport, error)
	FindLinkReports(ctx context.Context, status string) ([]model.LinkReport, error)
	FindLinkReportsByPostID(ctx context.Context, postID uuid.UUID) ([]model.LinkReport, error)
	HasPendingLinkReport(ctx context.Context, reporterID, postID uuid.UUID, groupIndex, linkIndex int) (bool, error)
	UpdateLinkReportStatus(ctx context.Context, id uuid.UUID, status string) error
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	var report model.Report
	if err := r.db.WithContext(ctx).
		Preload("Reporter").
		Where("id = ?", id).
		First(&report).Error; err != nil {
		return nil, err
	}

	return &report, nil
}

func (r *reportRepository) FindAll(ctx context.Context, status string) ([]model.Report, error) {
	query := r.db.WithContext(ctx).Preload("Reporter").Order("created_at desc")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reports []model.Report
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}

	return reports, nil
}

func (r *reportRepository) HasPending(ctx context.Context, reporterID uuid.UUID, targetType string, targetID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?",
			reporterID, targetType, targetID, model.ReportStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepository) CreateLinkReport(ctx context.Context, report *model.LinkReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindLinkReportByID(ctx context.Context, id uuid.UUID) (*model.LinkReport, error) {
	var report model.LinkReport
	if err := r.db.WithContext(ctx).
		Preload("Reporter").
		Where("id = ?", id).
		First(&report).Error; err != nil {
		return nil, err
	}

	return &report, nil
}

func (r *reportRepository) FindLinkReports(ctx context.Context, status string) ([]model.LinkReport, error) {
	query := r.db.WithContext(ctx).Preload("Reporter").Order("created_at desc")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reports []model.LinkReport
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}

	return reports, nil
}

func (r *reportRepository) FindLinkReportsByPostID(ctx context.Context, postID uuid.UUID) ([]model.LinkReport, error) {
	var reports []model.LinkReport
	if err := r.db.WithContext(ctx).
		Preload("Reporter").
		Where("post_id = ?", postID).
		Order("created_at desc").
		Find(&reports).Error; err != nil {
		return nil, err
	}

	return reports, nil
}

func (r *reportRepository) HasPendingLinkReport(ctx context.Context, reporterID, postID uuid.UUID, groupIndex, linkIndex int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.LinkReport{}).
		Where("reporter_id = ? AND post_id = ? AND group_index = ? AND link_index = ? AND status = ?",
			reporterID, postID, groupIndex, linkIndex, model.ReportStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *reportRepository) UpdateLinkReportStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.LinkReport{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
