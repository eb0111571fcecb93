package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/model"
)

// AnalysisStore keeps analyses in memory between upload and export.
// Nothing is written to disk; entries expire after the configured TTL.
type AnalysisStore struct {
	analyses    map[string]*model.Analysis
	mu          sync.RWMutex
	maxAnalyses int // Maximum analyses to keep, 0 = unlimited
	now         func() time.Time
}

// NewAnalysisStore creates a store with the configured size limit
func NewAnalysisStore(cfg *config.StoreConfig) *AnalysisStore {
	maxAnalyses := cfg.MaxAnalyses
	if maxAnalyses < 0 {
		maxAnalyses = 0
	}
	slog.Info("analysis store initialized", "max_analyses", maxAnalyses, "ttl", cfg.TTL())
	return &AnalysisStore{
		analyses:    make(map[string]*model.Analysis),
		maxAnalyses: maxAnalyses,
		now:         time.Now,
	}
}

func (s *AnalysisStore) Save(analysis *model.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[analysis.ID] = analysis

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

// Get returns the analysis, or nil if it is unknown or expired
func (s *AnalysisStore) Get(id string) *model.Analysis {
	s.mu.RLock()
	a, ok := s.analyses[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if a.Expired(s.now()) {
		s.Delete(id)
		return nil
	}
	return a
}

// GetByOwner returns the owner's live analyses, newest first
func (s *AnalysisStore) GetByOwner(owner string) []*model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var result []*model.Analysis
	for _, a := range s.analyses {
		if a.Owner == owner && !a.Expired(now) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *AnalysisStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, id)
}

// PurgeExpired removes every expired analysis and returns how many were removed
func (s *AnalysisStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, a := range s.analyses {
		if a.Expired(now) {
			delete(s.analyses, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("expired analyses purged", "count", removed)
	}
	return removed
}

// cleanupIfNeeded removes oldest analyses if store exceeds maxAnalyses
// Must be called with lock held
func (s *AnalysisStore) cleanupIfNeeded() {
	if s.maxAnalyses <= 0 {
		return // Unlimited
	}

	if len(s.analyses) <= s.maxAnalyses {
		return
	}

	// Sort analyses by creation time
	analyses := make([]*model.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		analyses = append(analyses, a)
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.Before(analyses[j].CreatedAt)
	})

	// Remove oldest analyses
	removeCount := len(analyses) - s.maxAnalyses
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old analysis",
			"analysis_id", analyses[i].ID,
			"created_at", analyses[i].CreatedAt,
		)
		delete(s.analyses, analyses[i].ID)
	}
}

// Count returns the number of analyses in the store
func (s *AnalysisStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}
