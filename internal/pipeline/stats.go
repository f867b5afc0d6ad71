package pipeline

import (
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Drop reasons recorded by the pipeline itself; extractor and validation
// reasons are recorded under their own names.
const (
	DropFetchFailed   = "fetch_failed"
	DropTextTooShort  = "text_too_short"
	DropLowRelevance  = "low_relevance"
	DropOther         = "other"
	DropNoDomain      = "no_domain"
	DropUniversityErr = "university_error"
)

// Stats aggregates counters across a run. It is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	UniversitiesProcessed int
	UniversitiesSkipped   int
	SearchURLs            int
	DirectoryPages        int
	Reclassified          int
	ProfilePages          int
	Crawled               int
	Extracted             int
	Saved                 int

	drops map[string]int
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{drops: make(map[string]int)}
}

// Drop counts one dropped URL or candidate under reason.
func (s *Stats) Drop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops[reason]++
}

// AddDrops merges a reason count map.
func (s *Stats) AddDrops(m map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.drops[k] += v
	}
}

// Drops returns a copy of the drop reason counts.
func (s *Stats) Drops() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.drops)
}

// add applies fn under the lock.
func (s *Stats) add(fn func(s *Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Log writes the run summary.
func (s *Stats) Log() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := []zap.Field{
		zap.Int("universities_processed", s.UniversitiesProcessed),
		zap.Int("universities_skipped", s.UniversitiesSkipped),
		zap.Int("search_urls", s.SearchURLs),
		zap.Int("directory_pages", s.DirectoryPages),
		zap.Int("reclassified_as_profile", s.Reclassified),
		zap.Int("profile_pages", s.ProfilePages),
		zap.Int("crawled_ok", s.Crawled),
		zap.Int("extracted", s.Extracted),
		zap.Int("saved", s.Saved),
	}
	for _, k := range slices.Sorted(maps.Keys(s.drops)) {
		fields = append(fields, zap.Int("dropped."+k, s.drops[k]))
	}
	zap.L().Info("pipeline: statistics", fields...)
}
