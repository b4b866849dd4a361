package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"gorm.io/gorm"
)

// JobFilter narrows a search. Company and title are case-insensitive
// substring matches; zero values mean "no filter".
type JobFilter struct {
	CompanyName string
	JobTitle    string
	Status      *models.JobStatus
	Limit       int
}

// JobStore is the persistence boundary for job records. All operations are
// scoped by the owning user; there is no cross-user visibility.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Job, error)
	List(ctx context.Context, userID uuid.UUID, status *models.JobStatus, limit int) ([]models.Job, error)
	Search(ctx context.Context, userID uuid.UUID, filter JobFilter) ([]models.Job, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status models.JobStatus) (*models.Job, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	DeleteByStatus(ctx context.Context, userID uuid.UUID, status models.JobStatus) (int, []string, error)
	Stats(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

type JobService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger) *JobService {
	return &JobService{
		db:  db,
		log: baseLog.With("service", "JobService"),
	}
}

// Create persists a new record. Identical title+company pairs are NOT
// deduplicated; every call yields a distinct record.
func (s *JobService) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.JobTitle == "" || job.CompanyName == "" {
		return nil, errors.New("job_title and company_name are required")
	}
	if job.Status == "" {
		job.Status = string(models.StatusApplied)
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	s.log.Info("Created job", "title", job.JobTitle, "company", job.CompanyName)
	return job, nil
}

func (s *JobService) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns the user's jobs newest-first, optionally filtered by status.
func (s *JobService) List(ctx context.Context, userID uuid.UUID, status *models.JobStatus, limit int) ([]models.Job, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date_added DESC")
	if status != nil {
		q = q.Where("status = ?", status.String())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Search applies every non-zero filter, newest-first. Stable ordering here
// matters: disambiguation lists are built from this order and resolved
// against it a turn later.
func (s *JobService) Search(ctx context.Context, userID uuid.UUID, filter JobFilter) ([]models.Job, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date_added DESC")
	if filter.CompanyName != "" {
		q = q.Where("LOWER(company_name) LIKE ?", "%"+strings.ToLower(filter.CompanyName)+"%")
	}
	if filter.JobTitle != "" {
		q = q.Where("LOWER(job_title) LIKE ?", "%"+strings.ToLower(filter.JobTitle)+"%")
	}
	if filter.Status != nil {
		q = q.Where("status = ?", filter.Status.String())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus sets the new status and advances last_updated. Returns nil
// when no record matches.
func (s *JobService) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status models.JobStatus) (*models.Job, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":       status.String(),
			"last_updated": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id, userID)
}

func (s *JobService) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Job{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByStatus removes every record in the given status and reports what
// was deleted.
func (s *JobService) DeleteByStatus(ctx context.Context, userID uuid.UUID, status models.JobStatus) (int, []string, error) {
	jobs, err := s.Search(ctx, userID, JobFilter{Status: &status})
	if err != nil {
		return 0, nil, err
	}
	if len(jobs) == 0 {
		return 0, nil, nil
	}
	titles := make([]string, 0, len(jobs))
	for _, j := range jobs {
		titles = append(titles, j.JobTitle+" at "+j.CompanyName)
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status.String()).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, nil, res.Error
	}
	return int(res.RowsAffected), titles, nil
}

// Stats counts the user's jobs per status.
func (s *JobService) Stats(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Select("status").
		Where("user_id = ?", userID).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	stats := map[string]int{}
	for _, j := range jobs {
		stats[j.Status]++
	}
	return stats, nil
}
