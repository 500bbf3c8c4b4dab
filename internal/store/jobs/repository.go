// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jobs implements the immutable job repository.
package jobs

import (
	"database/sql"
	"path"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noldarim/roar/internal/idgen"
	"github.com/noldarim/roar/internal/store"
)

// Repository implements the job repository over gorm.
type Repository struct {
	db *gorm.DB
}

// New wraps a gorm connection as a job repository.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ExtractScript derives jobs.script from a command string: the first
// *.py/*.sh token, else the token following -m, else nil.
func ExtractScript(command string) *string {
	parts := strings.Fields(command)
	for i, part := range parts {
		if strings.HasSuffix(part, ".py") || strings.HasSuffix(part, ".sh") {
			base := path.Base(part)
			return &base
		}
		if part == "-m" && i+1 < len(parts) {
			return &parts[i+1]
		}
	}
	return nil
}

// CreateParams bundles every field of a Job row the caller may supply.
type CreateParams struct {
	Command         string
	Timestamp       float64
	StepIdentity    string
	SessionID       *uint
	StepNumber      *int
	StepName        string
	GitRepo         string
	GitCommit       string
	GitBranch       string
	DurationSeconds *float64
	ExitCode        *int
	Metadata        string
	JobType         string
	Telemetry       string
	Status          string
}

// Create inserts an immutable job record, generating its 8-hex-character
// job_uid via a cryptographic RNG. Must run inside the
// caller's transaction.
func Create(tx *gorm.DB, p CreateParams) (uint, string, error) {
	jobUID, err := idgen.NewJobUID()
	if err != nil {
		return 0, "", err
	}

	job := store.Job{
		JobUID:          &jobUID,
		Timestamp:       p.Timestamp,
		Command:         p.Command,
		Script:          ExtractScript(p.Command),
		StepIdentity:    strPtr(p.StepIdentity),
		SessionID:       p.SessionID,
		StepNumber:      p.StepNumber,
		StepName:        strPtr(p.StepName),
		GitRepo:         strPtr(p.GitRepo),
		GitCommit:       strPtr(p.GitCommit),
		GitBranch:       strPtr(p.GitBranch),
		DurationSeconds: p.DurationSeconds,
		ExitCode:        p.ExitCode,
		Metadata:        strPtr(p.Metadata),
		JobType:         strPtr(p.JobType),
		Telemetry:       strPtr(p.Telemetry),
		Status:          strPtr(p.Status),
	}
	if err := tx.Create(&job).Error; err != nil {
		return 0, "", err
	}
	return job.ID, jobUID, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Get returns a job by its local sequence ID.
func (r *Repository) Get(id uint) (*store.Job, error) {
	var j store.Job
	err := r.db.First(&j, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetByUID resolves a job_uid, exact or prefix (minimum 4 chars), to a job.
// A prefix matching 2+ rows returns (nil, nil) — AmbiguousPrefix.
func (r *Repository) GetByUID(uid string) (*store.Job, error) {
	var exact store.Job
	err := r.db.Where("job_uid = ?", uid).First(&exact).Error
	if err == nil {
		return &exact, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if len(uid) < 4 {
		return nil, nil
	}
	var matches []store.Job
	if err := r.db.Where("job_uid LIKE ?", uid+"%").Limit(2).Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, nil
	}
	return &matches[0], nil
}

// AddInput links an artifact as a job input, idempotently with respect to
// the composite (job_id, artifact_id, path) primary key.
func AddInput(tx *gorm.DB, jobID uint, artifactID, path string) error {
	row := store.JobInput{JobID: jobID, ArtifactID: artifactID, Path: path}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// AddOutput links an artifact as a job output, idempotently.
func AddOutput(tx *gorm.DB, jobID uint, artifactID, path string) error {
	row := store.JobOutput{JobID: jobID, ArtifactID: artifactID, Path: path}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// GetInputs returns the raw JobInput rows for a job.
func (r *Repository) GetInputs(jobID uint) ([]store.JobInput, error) {
	var rows []store.JobInput
	err := r.db.Where("job_id = ?", jobID).Find(&rows).Error
	return rows, err
}

// GetOutputs returns the raw JobOutput rows for a job.
func (r *Repository) GetOutputs(jobID uint) ([]store.JobOutput, error) {
	var rows []store.JobOutput
	err := r.db.Where("job_id = ?", jobID).Find(&rows).Error
	return rows, err
}

// Search runs a full-text query against jobs.command/jobs.script via the
// jobs_fts shadow table.
func (r *Repository) Search(query string, limit int) ([]store.Job, error) {
	var ids []uint
	err := r.db.Raw(`
		SELECT j.id FROM jobs j
		JOIN jobs_fts fts ON j.id = fts.rowid
		WHERE jobs_fts MATCH ?
		ORDER BY j.timestamp DESC
		LIMIT ?
	`, query, limit).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []store.Job
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return orderByIDList(rows, ids), nil
}

// GetByScript returns jobs whose script matches exactly, ends with script,
// or whose command substring-matches it, most recent first.
func (r *Repository) GetByScript(script string, limit int) ([]store.Job, error) {
	var rows []store.Job
	err := r.db.
		Where("script = ? OR script LIKE ? OR command LIKE ?", script, "%"+script, "%"+script+"%").
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func orderByIDList(rows []store.Job, ids []uint) []store.Job {
	byID := make(map[uint]store.Job, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]store.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// GetRecent returns the most recently created jobs.
func (r *Repository) GetRecent(limit int) ([]store.Job, error) {
	var rows []store.Job
	err := r.db.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// MaxID returns the highest job ID in the store, or 0 when empty.
func (r *Repository) MaxID() (uint, error) {
	var max sql.NullInt64
	if err := r.db.Model(&store.Job{}).Select("MAX(id)").Scan(&max).Error; err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return uint(max.Int64), nil
}

// GetAfter returns up to limit jobs with an ID greater than afterID, oldest
// first. The serve command's event stream uses it to pick up jobs committed
// by other processes.
func (r *Repository) GetAfter(afterID uint, limit int) ([]store.Job, error) {
	var rows []store.Job
	err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// GetBySession returns the jobs placed in a session, most recent first.
func (r *Repository) GetBySession(sessionID uint, limit int) ([]store.Job, error) {
	var rows []store.Job
	err := r.db.Where("session_id = ?", sessionID).Order("timestamp DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// CleanupOrphanedArtifacts deletes every artifact in ids that appears in no
// JobInput, JobOutput, or CollectionMember row. Advisory; never
// triggered by normal job recording.
func CleanupOrphanedArtifacts(tx *gorm.DB, artifactIDs []string, deleteHashes, deleteArtifact func(string) error) error {
	for _, id := range artifactIDs {
		var count int64
		if err := tx.Model(&store.JobInput{}).Where("artifact_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Model(&store.JobOutput{}).Where("artifact_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Model(&store.CollectionMember{}).Where("artifact_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := deleteHashes(id); err != nil {
			return err
		}
		if err := deleteArtifact(id); err != nil {
			return err
		}
	}
	return nil
}
