package knowledgebase

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
)

//go:embed default.yaml
var defaultEntries []byte

// Entry is one canned answer and the word patterns that trigger it.
type Entry struct {
	ID     string   `yaml:"id"`
	Intent string   `yaml:"intent"`
	Match  []string `yaml:"match"`
	Answer string   `yaml:"answer"`
}

type document struct {
	Entries []Entry `yaml:"entries"`
}

type compiledEntry struct {
	entry    Entry
	patterns [][]string
}

type index struct {
	entries []compiledEntry
}

// KnowledgeBase answers frequent questions from a YAML file, swapped atomically on reload.
type KnowledgeBase struct {
	path    string
	current atomic.Pointer[index]
	log     zerolog.Logger
}

// Load reads the knowledge base at path, or the built-in entries when path is empty.
func Load(path string, log zerolog.Logger) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		path: strings.TrimSpace(path),
		log:  log.With().Str("component", "knowledge-base").Logger(),
	}
	if err := kb.Reload(); err != nil {
		return nil, err
	}
	return kb, nil
}

// Reload re-reads the source; on error the previous entries stay in place.
func (kb *KnowledgeBase) Reload() error {
	data := defaultEntries
	source := "embedded"
	if kb.path != "" {
		raw, err := os.ReadFile(kb.path)
		if err != nil {
			return fmt.Errorf("read knowledge base: %w", err)
		}
		data, source = raw, kb.path
	}

	idx, err := parse(data)
	if err != nil {
		return fmt.Errorf("parse knowledge base %s: %w", source, err)
	}

	kb.current.Store(idx)
	metrics.KnowledgeBaseEntries.Set(float64(len(idx.entries)))
	kb.log.Info().Str("source", source).Int("entries", len(idx.entries)).Msg("knowledge base loaded")
	return nil
}

// Len returns the number of loaded entries.
func (kb *KnowledgeBase) Len() int {
	return len(kb.current.Load().entries)
}

// Lookup returns the entry whose most specific pattern is fully contained in the message.
func (kb *KnowledgeBase) Lookup(_ context.Context, message string) (router.Answer, bool) {
	words := strings.Fields(router.Normalize(message))
	if len(words) == 0 {
		metrics.KnowledgeBaseLookups.WithLabelValues(metrics.Outcome(false)).Inc()
		return router.Answer{}, false
	}

	var (
		best      *compiledEntry
		bestScore int
	)
	idx := kb.current.Load()
	for i := range idx.entries {
		candidate := &idx.entries[i]
		for _, pattern := range candidate.patterns {
			if len(pattern) > bestScore && containsAll(words, pattern) {
				best, bestScore = candidate, len(pattern)
			}
		}
	}

	metrics.KnowledgeBaseLookups.WithLabelValues(metrics.Outcome(best != nil)).Inc()
	if best == nil {
		return router.Answer{}, false
	}
	return router.Answer{
		EntryID: best.entry.ID,
		Intent:  router.Intent(best.entry.Intent),
		Text:    best.entry.Answer,
	}, true
}

func parse(data []byte) (*index, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(doc.Entries))
	idx := &index{entries: make([]compiledEntry, 0, len(doc.Entries))}
	for i, entry := range doc.Entries {
		entry.ID = strings.TrimSpace(entry.ID)
		entry.Answer = strings.TrimSpace(entry.Answer)
		switch {
		case entry.ID == "":
			return nil, fmt.Errorf("entry %d has no id", i)
		case entry.Answer == "":
			return nil, fmt.Errorf("entry %q has no answer", entry.ID)
		case len(entry.Match) == 0:
			return nil, fmt.Errorf("entry %q has no match patterns", entry.ID)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		compiled := compiledEntry{entry: entry}
		for _, m := range entry.Match {
			if words := strings.Fields(router.Normalize(m)); len(words) > 0 {
				compiled.patterns = append(compiled.patterns, words)
			}
		}
		if len(compiled.patterns) == 0 {
			return nil, fmt.Errorf("entry %q has only empty patterns", entry.ID)
		}
		idx.entries = append(idx.entries, compiled)
	}
	return idx, nil
}

// containsAll reports whether every pattern word starts some message word.
func containsAll(words, pattern []string) bool {
	for _, p := range pattern {
		found := false
		for _, w := range words {
			if strings.HasPrefix(w, p) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var _ router.KnowledgeBase = (*KnowledgeBase)(nil)
