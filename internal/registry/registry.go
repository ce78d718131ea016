package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownToken is matched by every UnknownTokenError.
var ErrUnknownToken = errors.New("unknown token")

// UnknownTokenError reports a token text or ID that has no registry entry.
// It usually means the sample was analysed against another database and must
// be analysed again.
type UnknownTokenError struct {
	Text string
	ID   int64
	ByID bool
}

func (e *UnknownTokenError) Error() string {
	if e.ByID {
		return fmt.Sprintf("unknown token id (%d). You may need to reanalyse the source text", e.ID)
	}
	return fmt.Sprintf("unknown token (%q). You may need to reanalyse the source text", e.Text)
}

func (e *UnknownTokenError) Unwrap() error { return ErrUnknownToken }

// Store persists the token table.
type Store interface {
	// InsertMissing adds every text not already stored. Duplicates in texts
	// are inserted once.
	InsertMissing(ctx context.Context, texts []string) error
	// IDsFor returns the IDs of the stored texts among texts.
	IDsFor(ctx context.Context, texts []string) (map[string]int64, error)
	// TextsFor returns the texts of the stored IDs among ids.
	TextsFor(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Registry interns token texts to stable IDs. Entries are cached for the
// lifetime of the process and never evicted; IDs are never reassigned.
type Registry struct {
	store  Store
	mu     sync.RWMutex
	byText map[string]int64
	byID   map[int64]string
}

// New returns a Registry over store.
func New(store Store) *Registry {
	return &Registry{
		store:  store,
		byText: make(map[string]int64),
		byID:   make(map[int64]string),
	}
}

// Intern returns the ID of every token, registering unknown texts first.
func (r *Registry) Intern(ctx context.Context, tokens []string) ([]int64, error) {
	missing := r.uncachedTexts(tokens)
	if len(missing) > 0 {
		if err := r.store.InsertMissing(ctx, missing); err != nil {
			return nil, fmt.Errorf("failed to insert tokens: %w", err)
		}
		if err := r.loadTexts(ctx, missing); err != nil {
			return nil, err
		}
	}
	return r.idsFromCache(tokens)
}

// Lookup returns the ID of every token without registering anything.
func (r *Registry) Lookup(ctx context.Context, tokens []string) ([]int64, error) {
	if missing := r.uncachedTexts(tokens); len(missing) > 0 {
		if err := r.loadTexts(ctx, missing); err != nil {
			return nil, err
		}
	}
	return r.idsFromCache(tokens)
}

// Resolve maps IDs back to their token texts.
func (r *Registry) Resolve(ctx context.Context, ids []int64) ([]string, error) {
	var missing []int64
	seen := make(map[int64]bool)
	r.mu.RLock()
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	r.mu.RUnlock()

	if len(missing) > 0 {
		found, err := r.store.TextsFor(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load token texts: %w", err)
		}
		r.remember(found)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	texts := make([]string, len(ids))
	for i, id := range ids {
		text, ok := r.byID[id]
		if !ok {
			return nil, &UnknownTokenError{ID: id, ByID: true}
		}
		texts[i] = text
	}
	return texts, nil
}

func (r *Registry) uncachedTexts(tokens []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		if _, ok := r.byText[t]; ok || seen[t] {
			continue
		}
		seen[t] = true
		missing = append(missing, t)
	}
	return missing
}

func (r *Registry) loadTexts(ctx context.Context, texts []string) error {
	found, err := r.store.IDsFor(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to load token ids: %w", err)
	}
	byID := make(map[int64]string, len(found))
	for text, id := range found {
		byID[id] = text
	}
	r.remember(byID)
	return nil
}

func (r *Registry) remember(byID map[int64]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, text := range byID {
		r.byID[id] = text
		r.byText[text] = id
	}
}

func (r *Registry) idsFromCache(tokens []string) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, len(tokens))
	for i, t := range tokens {
		id, ok := r.byText[t]
		if !ok {
			return nil, &UnknownTokenError{Text: t}
		}
		ids[i] = id
	}
	return ids, nil
}
