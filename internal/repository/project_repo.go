package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/models"
	"go.uber.org/zap"
)

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `
	id, netvisor_project_key, code, name, address, project_manager_email,
	start_date, end_date, is_active, created_at, updated_at`

// Upsert inserts the project or refreshes its mutable fields keyed on the
// accounting-system project key. Identity fields never change.
func (r *ProjectRepository) Upsert(tx *sql.Tx, project *models.Project) error {
	query := `
		INSERT INTO projects (
			netvisor_project_key, code, name, address, project_manager_email,
			start_date, end_date, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(netvisor_project_key) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			address = excluded.address,
			project_manager_email = excluded.project_manager_email,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			updated_at = ?
	`

	_, err := on(r.db, tx).Exec(query,
		project.NetvisorProjectKey,
		project.Code,
		project.Name,
		project.Address,
		project.ProjectManagerEmail,
		project.StartDate,
		project.EndDate,
		project.IsActive,
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert project",
			zap.Int64("project_key", project.NetvisorProjectKey),
			zap.Error(err))
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// GetActive retrieves all active projects ordered by code
func (r *ProjectRepository) GetActive() ([]*models.Project, error) {
	query := `SELECT` + projectColumns + ` FROM projects WHERE is_active = 1 ORDER BY code`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to get active projects", zap.Error(err))
		return nil, fmt.Errorf("failed to get active projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// GetByNetvisorKey retrieves a project by its accounting-system key.
// Returns nil when no such project exists.
func (r *ProjectRepository) GetByNetvisorKey(key int64) (*models.Project, error) {
	query := `SELECT` + projectColumns + ` FROM projects WHERE netvisor_project_key = ?`

	project, err := scanProject(r.db.QueryRow(query, key).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project", zap.Int64("project_key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func scanProject(scan func(dest ...any) error) (*models.Project, error) {
	var project models.Project
	var startDate, endDate, updatedAt sql.NullTime

	err := scan(
		&project.ID,
		&project.NetvisorProjectKey,
		&project.Code,
		&project.Name,
		&project.Address,
		&project.ProjectManagerEmail,
		&startDate,
		&endDate,
		&project.IsActive,
		&project.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		project.StartDate = &startDate.Time
	}
	if endDate.Valid {
		project.EndDate = &endDate.Time
	}
	if updatedAt.Valid {
		project.UpdatedAt = &updatedAt.Time
	}

	return &project, nil
}
