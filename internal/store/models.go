// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store defines the gorm models backing the persisted schema and
// owns the sqlite connection and migration.
package store

// Artifact is a content-addressed file object.
type Artifact struct {
	ID            string   `gorm:"column:id;primaryKey"`
	Size          int64    `gorm:"column:size;not null"`
	FirstSeenAt   float64  `gorm:"column:first_seen_at;not null;index:idx_artifacts_first_seen"`
	FirstSeenPath *string  `gorm:"column:first_seen_path"`
	SourceType    *string  `gorm:"column:source_type"`
	SourceURL     *string  `gorm:"column:source_url"`
	UploadedTo    *string  `gorm:"column:uploaded_to"` // JSON list
	SyncedAt      *float64 `gorm:"column:synced_at;index:idx_artifacts_synced"`
	Metadata      *string  `gorm:"column:metadata"` // JSON

	Hashes []ArtifactHash `gorm:"foreignKey:ArtifactID;constraint:OnDelete:CASCADE"`
}

func (Artifact) TableName() string { return "artifacts" }

// ArtifactHash is a (algorithm, digest) tuple attached to exactly one
// Artifact.
type ArtifactHash struct {
	Algorithm  string `gorm:"column:algorithm;primaryKey"`
	Digest     string `gorm:"column:digest;primaryKey;index:idx_artifact_hashes_digest"`
	ArtifactID string `gorm:"column:artifact_id;not null;index:idx_artifact_hashes_artifact"`
}

func (ArtifactHash) TableName() string { return "artifact_hashes" }

// Session is an ordered container of steps.
type Session struct {
	ID                 uint     `gorm:"column:id;primaryKey;autoIncrement"`
	Hash               *string  `gorm:"column:hash;uniqueIndex:idx_sessions_hash_uq"`
	CreatedAt          float64  `gorm:"column:created_at;not null"`
	SourceArtifactHash *string  `gorm:"column:source_artifact_hash;index:idx_sessions_source"`
	CurrentStep        int      `gorm:"column:current_step;default:1"`
	IsActive           int      `gorm:"column:is_active;default:0;index:idx_sessions_active"`
	GitRepo            *string  `gorm:"column:git_repo"`
	GitCommitStart     *string  `gorm:"column:git_commit_start"`
	GitCommitEnd       *string  `gorm:"column:git_commit_end"`
	SyncedAt           *float64 `gorm:"column:synced_at"`
	Metadata           *string  `gorm:"column:metadata"`

	Jobs []Job `gorm:"foreignKey:SessionID"`
}

func (Session) TableName() string { return "sessions" }

// Job is an immutable execution record.
type Job struct {
	ID              uint     `gorm:"column:id;primaryKey;autoIncrement"`
	JobUID          *string  `gorm:"column:job_uid;uniqueIndex:idx_jobs_uid_uq"`
	Timestamp       float64  `gorm:"column:timestamp;not null;index:idx_jobs_timestamp"`
	Command         string   `gorm:"column:command;not null"`
	Script          *string  `gorm:"column:script;index:idx_jobs_script"`
	StepIdentity    *string  `gorm:"column:step_identity;index:idx_jobs_step_identity"`
	SessionID       *uint    `gorm:"column:session_id;index:idx_jobs_session"`
	StepNumber      *int     `gorm:"column:step_number"`
	StepName        *string  `gorm:"column:step_name"`
	GitRepo         *string  `gorm:"column:git_repo"`
	GitCommit       *string  `gorm:"column:git_commit;index:idx_jobs_git_commit"`
	GitBranch       *string  `gorm:"column:git_branch"`
	DurationSeconds *float64 `gorm:"column:duration_seconds"`
	ExitCode        *int     `gorm:"column:exit_code"`
	SyncedAt        *float64 `gorm:"column:synced_at;index:idx_jobs_synced"`
	Status          *string  `gorm:"column:status"`
	JobType         *string  `gorm:"column:job_type"`
	Metadata        *string  `gorm:"column:metadata"`
	Telemetry       *string  `gorm:"column:telemetry"`

	Inputs  []JobInput  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	Outputs []JobOutput `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (Job) TableName() string { return "jobs" }

// JobInput associates a job with an artifact it consumed.
type JobInput struct {
	JobID      uint   `gorm:"column:job_id;primaryKey"`
	ArtifactID string `gorm:"column:artifact_id;primaryKey;index:idx_job_inputs_artifact"`
	Path       string `gorm:"column:path;primaryKey;index:idx_job_inputs_path"`
}

func (JobInput) TableName() string { return "job_inputs" }

// JobOutput associates a job with an artifact it produced.
type JobOutput struct {
	JobID      uint   `gorm:"column:job_id;primaryKey"`
	ArtifactID string `gorm:"column:artifact_id;primaryKey;index:idx_job_outputs_artifact"`
	Path       string `gorm:"column:path;primaryKey;index:idx_job_outputs_path"`
}

func (JobOutput) TableName() string { return "job_outputs" }

// HashCache is the persisted (path, algorithm) -> digest cache.
type HashCache struct {
	Path      string  `gorm:"column:path;primaryKey;index:idx_hash_cache_path"`
	Algorithm string  `gorm:"column:algorithm;primaryKey"`
	Digest    string  `gorm:"column:digest;not null"`
	Size      int64   `gorm:"column:size;not null"`
	Mtime     float64 `gorm:"column:mtime;not null"`
	CachedAt  float64 `gorm:"column:cached_at;not null;index:idx_hash_cache_updated"`
}

func (HashCache) TableName() string { return "hash_cache" }

// Collection is a named group of artifacts and/or sub-collections.
type Collection struct {
	ID             uint     `gorm:"column:id;primaryKey;autoIncrement"`
	Name           string   `gorm:"column:name;not null;index:idx_collections_name"`
	CollectionType *string  `gorm:"column:collection_type;index:idx_collections_type"`
	SourceType     *string  `gorm:"column:source_type"`
	SourceURL      *string  `gorm:"column:source_url;index:idx_collections_source"`
	UploadedTo     *string  `gorm:"column:uploaded_to"`
	CreatedAt      float64  `gorm:"column:created_at;not null"`
	SyncedAt       *float64 `gorm:"column:synced_at"`
	Metadata       *string  `gorm:"column:metadata"`

	Members []CollectionMember `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
}

func (Collection) TableName() string { return "collections" }

// CollectionMember is a membership row referencing exactly one of
// {artifact, child_collection}.
type CollectionMember struct {
	ID                uint    `gorm:"column:id;primaryKey;autoIncrement"`
	CollectionID      uint    `gorm:"column:collection_id;not null;index:idx_collection_members_collection"`
	ArtifactID        *string `gorm:"column:artifact_id;index:idx_collection_members_artifact"`
	ChildCollectionID *uint   `gorm:"column:child_collection_id;index:idx_collection_members_child"`
	PathInCollection  *string `gorm:"column:path_in_collection"`
}

func (CollectionMember) TableName() string { return "collection_members" }

// SchemaVersion tracks the applied migration version.
type SchemaVersion struct {
	Version int `gorm:"column:version;primaryKey"`
}

func (SchemaVersion) TableName() string { return "schema_version" }

// CurrentSchemaVersion is bumped whenever AutoMigrate gains a
// backward-incompatible step beyond what gorm's column/index diffing covers.
const CurrentSchemaVersion = 1
