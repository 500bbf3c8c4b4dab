// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifacts implements the content-addressed artifact repository.
package artifacts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noldarim/roar/internal/idgen"
	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/store"
)

// ErrNoHashes is returned by Register when the input hash map is empty.
var ErrNoHashes = fmt.Errorf("artifacts: at least one hash is required")

// Hash is a single (algorithm, digest) pair attached to an artifact.
type Hash struct {
	Algorithm string
	Digest    string
}

// Jobs bundles the producer/consumer job lists returned by GetJobs.
type Jobs struct {
	ProducedBy []store.Job
	ConsumedBy []store.Job
}

// Repository implements the artifact repository over gorm.
type Repository struct {
	db *gorm.DB
}

// New wraps a gorm connection as an artifact repository.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Register extends an existing artifact with new hashes if any supplied
// (algorithm, digest) pair already identifies one, otherwise allocates a
// new artifact. Must run inside the caller's transaction.
func (r *Repository) Register(tx *gorm.DB, hashes map[string]string, size int64, path, sourceType, sourceURL, metadata string) (string, bool, error) {
	if len(hashes) == 0 {
		return "", false, ErrNoHashes
	}
	if tx == nil {
		tx = r.db
	}

	lowered := make(map[string]string, len(hashes))
	for algo, digest := range hashes {
		lowered[algo] = strings.ToLower(digest)
	}

	// Iterate in sorted algorithm-name order so first-match resolution is
	// deterministic rather than subject to Go's randomized map iteration.
	algos := make([]string, 0, len(lowered))
	for algo := range lowered {
		algos = append(algos, algo)
	}
	sort.Strings(algos)

	for _, algo := range algos {
		digest := lowered[algo]
		var existing store.ArtifactHash
		err := tx.Where("algorithm = ? AND digest = ?", algo, digest).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return "", false, err
		}

		artifactID := existing.ArtifactID
		for algo2, digest2 := range lowered {
			var h store.ArtifactHash
			err := tx.Where("algorithm = ? AND digest = ?", algo2, digest2).First(&h).Error
			if err == gorm.ErrRecordNotFound {
				newHash := store.ArtifactHash{ArtifactID: artifactID, Algorithm: algo2, Digest: digest2}
				if err := tx.Create(&newHash).Error; err != nil {
					return "", false, err
				}
			} else if err != nil {
				return "", false, err
			} else if h.ArtifactID != artifactID {
				// Two hashes in one request resolve to different artifacts.
				// First match wins; the divergence usually means corrupted
				// or hand-edited data, so leave a trail for the operator.
				logger.Artifacts().Warn().
					Str("artifact_id", artifactID).
					Str("conflicting_artifact_id", h.ArtifactID).
					Str("algorithm", algo2).
					Str("digest", digest2).
					Msg("hash already owned by a different artifact; keeping first match")
			}
		}
		return artifactID, false, nil
	}

	artifactID := idgen.NewArtifactID()
	artifact := store.Artifact{
		ID:          artifactID,
		Size:        size,
		FirstSeenAt: nowUnix(),
	}
	if path != "" {
		artifact.FirstSeenPath = &path
	}
	if sourceType != "" {
		artifact.SourceType = &sourceType
	}
	if sourceURL != "" {
		artifact.SourceURL = &sourceURL
	}
	if metadata != "" {
		artifact.Metadata = &metadata
	}
	if err := tx.Create(&artifact).Error; err != nil {
		return "", false, err
	}
	for algo, digest := range lowered {
		h := store.ArtifactHash{ArtifactID: artifactID, Algorithm: algo, Digest: digest}
		if err := tx.Create(&h).Error; err != nil {
			return "", false, err
		}
	}
	return artifactID, true, nil
}

// Get returns an artifact by its opaque ID.
func (r *Repository) Get(id string) (*store.Artifact, error) {
	var a store.Artifact
	err := r.db.First(&a, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetHashes returns every Hash row attached to an artifact.
func (r *Repository) GetHashes(artifactID string) ([]Hash, error) {
	var rows []store.ArtifactHash
	if err := r.db.Where("artifact_id = ?", artifactID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Hash, 0, len(rows))
	for _, h := range rows {
		out = append(out, Hash{Algorithm: h.Algorithm, Digest: h.Digest})
	}
	return out, nil
}

// GetByHash resolves a (possibly prefix) digest, optionally scoped to one
// algorithm, to the artifact it identifies. A prefix shorter than 8 hex
// characters, or one matching 2+ artifacts, returns (nil, nil).
func (r *Repository) GetByHash(digest, algorithm string) (*store.Artifact, error) {
	if digest == "" || len(digest) < 8 {
		return nil, nil
	}
	digest = strings.ToLower(digest)

	q := r.db.Model(&store.ArtifactHash{}).Where("digest LIKE ?", digest+"%")
	if algorithm != "" {
		q = q.Where("algorithm = ?", algorithm)
	}
	var hashes []store.ArtifactHash
	if err := q.Limit(2).Find(&hashes).Error; err != nil {
		return nil, err
	}
	if len(hashes) != 1 {
		return nil, nil
	}
	return r.Get(hashes[0].ArtifactID)
}

// GetByPath resolves a file path to the artifact most recently associated
// with it, searching JobOutput, then JobInput, then first_seen_path in that
// order.
func (r *Repository) GetByPath(path string) (*store.Artifact, error) {
	var out struct {
		ArtifactID string
	}
	err := r.db.Model(&store.JobOutput{}).
		Select("job_outputs.artifact_id").
		Joins("JOIN jobs ON jobs.id = job_outputs.job_id").
		Where("job_outputs.path = ?", path).
		Order("jobs.timestamp DESC").
		Limit(1).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ArtifactID != "" {
		return r.Get(out.ArtifactID)
	}

	err = r.db.Model(&store.JobInput{}).
		Select("job_inputs.artifact_id").
		Joins("JOIN jobs ON jobs.id = job_inputs.job_id").
		Where("job_inputs.path = ?", path).
		Order("jobs.timestamp DESC").
		Limit(1).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ArtifactID != "" {
		return r.Get(out.ArtifactID)
	}

	var a store.Artifact
	err = r.db.Where("first_seen_path = ?", path).Limit(1).First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetJobs returns the jobs that produced and consumed an artifact, each
// ordered by timestamp descending.
func (r *Repository) GetJobs(artifactID string) (Jobs, error) {
	var produced []store.Job
	if err := r.db.Joins("JOIN job_outputs ON job_outputs.job_id = jobs.id").
		Where("job_outputs.artifact_id = ?", artifactID).
		Order("jobs.timestamp DESC").
		Find(&produced).Error; err != nil {
		return Jobs{}, err
	}

	var consumed []store.Job
	if err := r.db.Joins("JOIN job_inputs ON job_inputs.job_id = jobs.id").
		Where("job_inputs.artifact_id = ?", artifactID).
		Order("jobs.timestamp DESC").
		Find(&consumed).Error; err != nil {
		return Jobs{}, err
	}

	return Jobs{ProducedBy: produced, ConsumedBy: consumed}, nil
}

// GetLocations returns every known path for an artifact — the union of its
// JobInput, JobOutput, and first_seen_path locations, lexicographically
// sorted.
func (r *Repository) GetLocations(artifactID string) ([]string, error) {
	set := make(map[string]struct{})

	var outputPaths []string
	if err := r.db.Model(&store.JobOutput{}).Distinct("path").
		Where("artifact_id = ?", artifactID).Pluck("path", &outputPaths).Error; err != nil {
		return nil, err
	}
	for _, p := range outputPaths {
		set[p] = struct{}{}
	}

	var inputPaths []string
	if err := r.db.Model(&store.JobInput{}).Distinct("path").
		Where("artifact_id = ?", artifactID).Pluck("path", &inputPaths).Error; err != nil {
		return nil, err
	}
	for _, p := range inputPaths {
		set[p] = struct{}{}
	}

	a, err := r.Get(artifactID)
	if err != nil {
		return nil, err
	}
	if a != nil && a.FirstSeenPath != nil && *a.FirstSeenPath != "" {
		set[*a.FirstSeenPath] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// UpdateUpload appends a destination to an artifact's JSON-encoded
// uploaded_to list, deduplicated.
func (r *Repository) UpdateUpload(artifactID, uploadedTo string) error {
	a, err := r.Get(artifactID)
	if err != nil || a == nil {
		return err
	}
	var current []string
	if a.UploadedTo != nil && *a.UploadedTo != "" {
		if err := json.Unmarshal([]byte(*a.UploadedTo), &current); err != nil {
			return err
		}
	}
	for _, existing := range current {
		if existing == uploadedTo {
			return nil
		}
	}
	current = append(current, uploadedTo)
	b, err := json.Marshal(current)
	if err != nil {
		return err
	}
	s := string(b)
	return r.db.Model(&store.Artifact{}).Where("id = ?", artifactID).Update("uploaded_to", s).Error
}

// DeleteHashes removes every Hash row for an artifact (used by the orphan
// sweep).
func (r *Repository) DeleteHashes(artifactID string) error {
	return r.db.Where("artifact_id = ?", artifactID).Delete(&store.ArtifactHash{}).Error
}

// Delete removes an artifact row (used by the orphan sweep).
func (r *Repository) Delete(artifactID string) error {
	return r.db.Where("id = ?", artifactID).Delete(&store.Artifact{}).Error
}

// ListIDs returns every known artifact ID, used by the orphan sweep (`roar
// gc`) to enumerate candidates for CleanupOrphanedArtifacts.
func (r *Repository) ListIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&store.Artifact{}).Pluck("id", &ids).Error
	return ids, err
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
