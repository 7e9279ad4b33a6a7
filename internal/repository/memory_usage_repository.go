package repository

import (
	"context"
	"sync"
	"time"

	"ollama-gateway/internal/models"
)

// GlobalLimitSource supplies the current global daily cap; 0 means no cap.
type GlobalLimitSource interface {
	GlobalDailyLimit(ctx context.Context) (int, error)
}

// GlobalLimitFunc adapts a function to a GlobalLimitSource.
type GlobalLimitFunc func(ctx context.Context) (int, error)

func (f GlobalLimitFunc) GlobalDailyLimit(ctx context.Context) (int, error) {
	return f(ctx)
}

// MemoryUsageRepository is an in-memory ledger. One mutex is the
// single-writer serialization point for all admissions, so the check and
// increment can never interleave. Suitable for tests and single-process
// runs without a database; counts do not survive restarts.
type MemoryUsageRepository struct {
	mu       sync.Mutex
	counters map[usageKey]int
	global   GlobalLimitSource
}

type usageKey struct {
	username string
	date     string
}

var _ UsageRepository = (*MemoryUsageRepository)(nil)

// NewMemoryUsageRepository creates an in-memory ledger. global may be nil
// when no global cap applies.
func NewMemoryUsageRepository(global GlobalLimitSource) *MemoryUsageRepository {
	return &MemoryUsageRepository{
		counters: make(map[usageKey]int),
		global:   global,
	}
}

func dateKey(day time.Time) string {
	return models.Day(day).Format("2006-01-02")
}

func (r *MemoryUsageRepository) GetOrCreateToday(ctx context.Context, username string, day time.Time) (*models.UsageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{username: username, date: dateKey(day)}
	count, ok := r.counters[key]
	if !ok {
		r.counters[key] = 0
	}
	return &models.UsageCounter{Username: username, Date: models.Day(day), Count: count}, nil
}

func (r *MemoryUsageRepository) Admit(ctx context.Context, username string, day time.Time, perUserLimit int) (models.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{username: username, date: dateKey(day)}
	count := r.counters[key]

	if count >= perUserLimit {
		return models.Admission{Status: models.AdmitDeniedPerUser, Count: count, Limit: perUserLimit}, nil
	}

	if r.global != nil {
		globalLimit, err := r.global.GlobalDailyLimit(ctx)
		if err != nil {
			return models.Admission{}, err
		}
		if globalLimit > 0 {
			dayTotal := 0
			date := dateKey(day)
			for k, c := range r.counters {
				if k.date == date {
					dayTotal += c
				}
			}
			if dayTotal >= globalLimit {
				return models.Admission{Status: models.AdmitDeniedGlobal, Count: count, Limit: globalLimit}, nil
			}
		}
	}

	r.counters[key] = count + 1
	return models.Admission{Status: models.AdmitAllowed, Count: count + 1, Limit: perUserLimit}, nil
}

func (r *MemoryUsageRepository) Sum(ctx context.Context, username string, since *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ISO dates compare correctly as strings.
	var cutoff string
	if since != nil {
		cutoff = dateKey(*since)
	}

	total := 0
	for k, c := range r.counters {
		if k.username != username {
			continue
		}
		if cutoff != "" && k.date < cutoff {
			continue
		}
		total += c
	}
	return total, nil
}

func (r *MemoryUsageRepository) SumAll(ctx context.Context, since *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cutoff string
	if since != nil {
		cutoff = dateKey(*since)
	}

	total := 0
	for k, c := range r.counters {
		if cutoff != "" && k.date < cutoff {
			continue
		}
		total += c
	}
	return total, nil
}

func (r *MemoryUsageRepository) ResetAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters = make(map[usageKey]int)
	return nil
}
