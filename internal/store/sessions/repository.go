// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessions implements the session/step repository: path
// normalization, step identity, step numbering, and the active-session
// singleton.
package sessions

import (
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"github.com/noldarim/roar/internal/idgen"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/jobs"
)

// Repository implements the session repository over gorm.
type Repository struct {
	db *gorm.DB
}

// New wraps a gorm connection as a session repository.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// numberGlob matches a run of 3+ digits preceded by '_' or '-'. Go's RE2
// engine has no lookahead, so globifyNumbers checks the trailing boundary
// ('.', '/', or end of string) itself rather than in the pattern.
var numberGlob = regexp.MustCompile(`[_-]\d{3,}`)

// NormalizePath resolves path relative to repoRoot (if it falls under it),
// else relative to the user's home directory, else to its base name, then
// globifies numeric sequences.
func NormalizePath(path, repoRoot string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)

	if repoRoot != "" {
		if rootAbs, err := filepath.Abs(repoRoot); err == nil {
			rootAbs = filepath.Clean(rootAbs)
			if rel, err := filepath.Rel(rootAbs, abs); err == nil && !strings.HasPrefix(rel, "..") {
				return globifyNumbers(filepath.ToSlash(rel))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		home = filepath.Clean(home)
		if rel, err := filepath.Rel(home, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return globifyNumbers(filepath.ToSlash(rel))
		}
	}

	return globifyNumbers(filepath.Base(abs))
}

// globifyNumbers replaces numeric sequences in a normalized path with
// wildcards, so numbered checkpoints and run directories collapse onto one
// step identity.
func globifyNumbers(s string) string {
	matches := numberGlob.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		boundary := end == len(s) || s[end] == '.' || s[end] == '/'
		if !boundary {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteByte(s[start]) // the '_' or '-' separator
		b.WriteByte('*')
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// ComputeStepIdentity hashes the sorted, normalized input and output paths
// of a step into a BLAKE3 digest. When both lists are empty it instead
// hashes the command's extracted script name, prefixed "COMMAND:", so a
// step with no filesystem footprint still gets a stable identity.
func ComputeStepIdentity(inputPaths, outputPaths []string, repoRoot, command string) string {
	var identity string

	if len(inputPaths) == 0 && len(outputPaths) == 0 && command != "" {
		script := command
		if s := jobs.ExtractScript(command); s != nil {
			script = *s
		}
		identity = "COMMAND:" + script
	} else {
		normIn := normalizeAndSort(inputPaths, repoRoot)
		normOut := normalizeAndSort(outputPaths, repoRoot)

		parts := make([]string, 0, len(normIn)+len(normOut)+2)
		parts = append(parts, "INPUTS:")
		parts = append(parts, normIn...)
		parts = append(parts, "OUTPUTS:")
		parts = append(parts, normOut...)
		identity = strings.Join(parts, "\x00")
	}

	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(identity))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeAndSort(paths []string, repoRoot string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, NormalizePath(p, repoRoot))
	}
	sort.Strings(out)
	return out
}

// GetOrCreateActive returns the currently active session's ID, creating a
// fresh one (with a random 64-hex session hash) if none is active.
func (r *Repository) GetOrCreateActive() (uint, error) {
	var active store.Session
	err := r.db.Where("is_active = 1").First(&active).Error
	if err == nil {
		return active.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	hash, err := idgen.NewSessionHash()
	if err != nil {
		return 0, err
	}
	session := store.Session{
		Hash:      &hash,
		CreatedAt: nowUnix(),
		IsActive:  1,
	}
	if err := r.db.Create(&session).Error; err != nil {
		return 0, err
	}
	return session.ID, nil
}

// GetActive returns the active session, or nil if none is active.
func (r *Repository) GetActive() (*store.Session, error) {
	var s store.Session
	err := r.db.Where("is_active = 1").First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetActive deactivates every session and activates the given one.
func (r *Repository) SetActive(sessionID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&store.Session{}).Where("1 = 1").Update("is_active", 0).Error; err != nil {
			return err
		}
		return tx.Model(&store.Session{}).Where("id = ?", sessionID).Update("is_active", 1).Error
	})
}

// CreateParams bundles the fields Create accepts.
type CreateParams struct {
	SourceArtifactHash string
	GitRepo            string
	GitCommit          string
	MakeActive         bool
}

// Create starts a new session, deactivating any currently active one when
// makeActive is set.
func (r *Repository) Create(p CreateParams) (uint, error) {
	var sessionID uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if p.MakeActive {
			if err := tx.Model(&store.Session{}).Where("1 = 1").Update("is_active", 0).Error; err != nil {
				return err
			}
		}
		hash, err := idgen.NewSessionHash()
		if err != nil {
			return err
		}
		session := store.Session{
			Hash:      &hash,
			CreatedAt: nowUnix(),
			IsActive:  boolToInt(p.MakeActive),
		}
		if p.SourceArtifactHash != "" {
			session.SourceArtifactHash = &p.SourceArtifactHash
		}
		if p.GitRepo != "" {
			session.GitRepo = &p.GitRepo
		}
		if p.GitCommit != "" {
			session.GitCommitStart = &p.GitCommit
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		sessionID = session.ID
		return nil
	})
	return sessionID, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get returns a session by ID.
func (r *Repository) Get(id uint) (*store.Session, error) {
	var s store.Session
	err := r.db.First(&s, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByHash resolves a session by its 64-hex content hash.
func (r *Repository) GetByHash(hash string) (*store.Session, error) {
	var s store.Session
	err := r.db.Where("hash = ?", hash).First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSteps returns every job in a session, ordered by step number then
// timestamp.
func (r *Repository) GetSteps(sessionID uint) ([]store.Job, error) {
	var rows []store.Job
	err := r.db.Where("session_id = ?", sessionID).
		Order("step_number ASC, timestamp ASC").
		Find(&rows).Error
	return rows, err
}

// GetStepByIdentity returns the most recent job in a session matching a
// step identity hash.
func (r *Repository) GetStepByIdentity(sessionID uint, stepIdentity string) (*store.Job, error) {
	var j store.Job
	err := r.db.Where("session_id = ? AND step_identity = ?", sessionID, stepIdentity).
		Order("timestamp DESC").
		First(&j).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetStepByNumber returns the most recent job at a step number, scoped to
// job_type "run" (the default, including NULL) or "build".
func (r *Repository) GetStepByNumber(sessionID uint, stepNumber int, jobType string) (*store.Job, error) {
	q := r.db.Where("session_id = ? AND step_number = ?", sessionID, stepNumber)
	if jobType == "build" {
		q = q.Where("job_type = ?", "build")
	} else {
		q = q.Where("job_type IS NULL OR job_type = ?", "run")
	}
	var j store.Job
	err := q.Order("timestamp DESC").First(&j).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetNextStepNumber returns one past the highest assigned step number in a
// session (dense, 1-based numbering).
func (r *Repository) GetNextStepNumber(sessionID uint) (int, error) {
	var max sql.NullInt64
	err := r.db.Model(&store.Job{}).
		Where("session_id = ?", sessionID).
		Select("MAX(step_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// UpdateCurrentStep sets a session's current_step pointer.
func (r *Repository) UpdateCurrentStep(sessionID uint, stepNumber int) error {
	return r.db.Model(&store.Session{}).Where("id = ?", sessionID).Update("current_step", stepNumber).Error
}

// UpdateGitCommits sets a session's git_commit_end (and git_commit_start if
// unset and updateStart is true).
func (r *Repository) UpdateGitCommits(sessionID uint, gitCommit string, updateStart bool) error {
	s, err := r.Get(sessionID)
	if err != nil || s == nil {
		return err
	}
	updates := map[string]interface{}{"git_commit_end": gitCommit}
	if updateStart && (s.GitCommitStart == nil || *s.GitCommitStart == "") {
		updates["git_commit_start"] = gitCommit
	}
	return r.db.Model(&store.Session{}).Where("id = ?", sessionID).Updates(updates).Error
}

// GitConsistency reports whether every job in a session ran against the
// same git commit.
type GitConsistency struct {
	Consistent bool
	Commits    []string
	Warning    string
}

// CheckGitConsistency reports whether a session's jobs span more than one
// git commit.
func (r *Repository) CheckGitConsistency(sessionID uint) (GitConsistency, error) {
	var commits []string
	err := r.db.Model(&store.Job{}).
		Where("session_id = ? AND git_commit IS NOT NULL AND git_commit != ''", sessionID).
		Distinct("git_commit").
		Pluck("git_commit", &commits).Error
	if err != nil {
		return GitConsistency{}, err
	}

	if len(commits) <= 1 {
		return GitConsistency{Consistent: true, Commits: commits}, nil
	}

	shortened := make([]string, len(commits))
	for i, c := range commits {
		if len(c) > 8 {
			shortened[i] = c[:8]
		} else {
			shortened[i] = c
		}
	}
	return GitConsistency{
		Consistent: false,
		Commits:    commits,
		Warning:    "pipeline has " + strconv.Itoa(len(commits)) + " different git commits: " + strings.Join(shortened, ", "),
	}, nil
}

// Summary bundles a session's display-ready overview.
type Summary struct {
	ID            uint
	Hash          string
	CreatedAt     float64
	CurrentStep   int
	TotalSteps    int
	IsActive      bool
	GitConsistent bool
	GitWarning    string
	Steps         []store.Job
}

// GetSummary builds a display summary for a session, collapsing repeated
// step numbers down to their most recent job.
func (r *Repository) GetSummary(sessionID uint) (*Summary, error) {
	session, err := r.Get(sessionID)
	if err != nil || session == nil {
		return nil, err
	}

	steps, err := r.GetSteps(sessionID)
	if err != nil {
		return nil, err
	}
	gitCheck, err := r.CheckGitConsistency(sessionID)
	if err != nil {
		return nil, err
	}

	latestByNumber := make(map[int]store.Job)
	for _, step := range steps {
		if step.StepNumber == nil {
			continue
		}
		num := *step.StepNumber
		if existing, ok := latestByNumber[num]; !ok || step.Timestamp > existing.Timestamp {
			latestByNumber[num] = step
		}
	}
	numbers := make([]int, 0, len(latestByNumber))
	for n := range latestByNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	ordered := make([]store.Job, 0, len(numbers))
	for _, n := range numbers {
		ordered = append(ordered, latestByNumber[n])
	}

	hash := ""
	if session.Hash != nil {
		hash = *session.Hash
	}
	return &Summary{
		ID:            sessionID,
		Hash:          hash,
		CreatedAt:     session.CreatedAt,
		CurrentStep:   session.CurrentStep,
		TotalSteps:    len(ordered),
		IsActive:      session.IsActive == 1,
		GitConsistent: gitCheck.Consistent,
		GitWarning:    gitCheck.Warning,
		Steps:         ordered,
	}, nil
}

// Clear deletes a session and disassociates its jobs, rather than deleting
// them.
func (r *Repository) Clear(sessionID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&store.Job{}).Where("session_id = ?", sessionID).
			Updates(map[string]interface{}{"session_id": nil, "step_number": nil, "step_name": nil}).Error; err != nil {
			return err
		}
		return tx.Delete(&store.Session{}, "id = ?", sessionID).Error
	})
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
