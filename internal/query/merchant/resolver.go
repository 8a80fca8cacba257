// Package merchant extracts and normalizes merchant names from natural
// language queries without a hardcoded merchant list. Extraction is a
// strategy hierarchy: prepositional context, fuzzy matching against the
// corpus of previously seen merchants, then an LLM fallback. The first
// strategy returning candidates wins; strategies are never merged.
package merchant

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Extractor is the language-understanding fallback. Implementations must
// return proper-cased merchant names only, never dates, amounts, or
// categories; a failure means "no information".
type Extractor interface {
	ExtractMerchants(ctx context.Context, query string, knownMerchants []string) ([]string, error)
}

const (
	fuzzyAcceptScore    = 0.75
	substringBoostScore = 0.9
	maxLLMResults       = 5
	maxCorpusContext    = 20
	minCandidateLen     = 3
)

// Resolver extracts merchant candidates from queries. Safe for concurrent
// use; the corpus it consults is append-only.
type Resolver struct {
	corpus   *Corpus
	fallback Extractor
	logger   *zap.Logger
}

// NewResolver creates a resolver. fallback may be nil to disable the LLM
// strategy; corpus may be nil to disable fuzzy matching.
func NewResolver(corpus *Corpus, fallback Extractor, logger *zap.Logger) *Resolver {
	if corpus == nil {
		corpus = NewCorpus()
	}
	return &Resolver{corpus: corpus, fallback: fallback, logger: logger}
}

// Corpus returns the resolver's merchant corpus for external seeding.
func (r *Resolver) Corpus() *Corpus { return r.corpus }

// prepositions that typically precede a merchant name. Multi-word forms
// precede their single-word prefixes.
var prepositionPatterns = func() []*regexp.Regexp {
	preps := []string{
		"spent at", "bought at", "shopped at", "ordered from",
		"purchased from", "receipts from", "visited", "at", "from", "to",
	}
	patterns := make([]*regexp.Regexp, 0, len(preps))
	for _, prep := range preps {
		patterns = append(patterns,
			regexp.MustCompile(`(?:^|\s)(?i:`+prep+`)\s+([A-Z][A-Za-z0-9\s.&']+)`))
	}
	return patterns
}()

// clauseBreakRe truncates a captured phrase at the first temporal or
// conjunction keyword so a trailing date clause is not swallowed.
var clauseBreakRe = regexp.MustCompile(`(?i)\s+(?:in|during|for|last|this|past|yesterday|on|over|under|with|about|before|after|and)(?:\s+|$)`)

var capitalizedPhraseRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

var tokenSplitRe = regexp.MustCompile(`[,;.!?]|\s+(?:and|or|in|at|from)\s+`)

// Extract returns display-cased merchant candidates for the query,
// possibly empty. It never fails.
func (r *Resolver) Extract(ctx context.Context, query string) []string {
	if candidates := r.extractViaPrepositions(query); len(candidates) > 0 {
		return dedupeNormalized(candidates)
	}
	if r.corpus.Len() > 0 {
		if candidates := r.extractViaFuzzyMatch(query); len(candidates) > 0 {
			return dedupeNormalized(candidates)
		}
	}
	return dedupeNormalized(r.extractViaLLM(ctx, query))
}

// extractViaPrepositions matches "at/from/spent at/... <Capitalized
// Phrase>", truncated at the first temporal keyword.
func (r *Resolver) extractViaPrepositions(query string) []string {
	var candidates []string
	for _, pattern := range prepositionPatterns {
		for _, m := range pattern.FindAllStringSubmatch(query, -1) {
			candidate := strings.TrimSpace(m[1])
			candidate = clauseBreakRe.Split(candidate, 2)[0]
			candidate = strings.TrimRight(candidate, ".,;!? ")
			if len(candidate) < minCandidateLen {
				continue
			}
			switch strings.ToLower(candidate) {
			case "the", "a", "an":
				continue
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

// extractViaFuzzyMatch scores capitalized query tokens against the corpus
// and accepts the best corpus entry per token at or above the threshold.
// Substring containment in either direction boosts the score.
func (r *Resolver) extractViaFuzzyMatch(query string) []string {
	var candidates []string
	for _, token := range tokenize(query) {
		if len(token) < minCandidateLen {
			continue
		}
		normToken := Normalize(token)
		if normToken == "" {
			continue
		}

		bestScore := 0.0
		bestMatch := ""
		for _, known := range r.corpus.Names() {
			normKnown := Normalize(known)
			score := similarityRatio(normToken, normKnown)
			if strings.Contains(normKnown, normToken) || strings.Contains(normToken, normKnown) {
				if score < substringBoostScore {
					score = substringBoostScore
				}
			}
			if score > bestScore {
				bestScore = score
				bestMatch = known
			}
		}

		if bestMatch != "" && bestScore >= fuzzyAcceptScore {
			r.log().Debug("fuzzy merchant match",
				zap.String("token", token),
				zap.String("merchant", bestMatch),
				zap.Float64("score", bestScore))
			candidates = append(candidates, bestMatch)
		}
	}
	return candidates
}

// extractViaLLM asks the fallback capability for merchant names, passing
// a bounded sample of the corpus to resolve aliases. Capped at five.
func (r *Resolver) extractViaLLM(ctx context.Context, query string) []string {
	if r.fallback == nil {
		return nil
	}
	known := r.corpus.Names()
	if len(known) > maxCorpusContext {
		known = known[:maxCorpusContext]
	}
	names, err := r.fallback.ExtractMerchants(ctx, query, known)
	if err != nil {
		r.log().Warn("llm merchant extraction failed", zap.Error(err))
		return nil
	}
	if len(names) > maxLLMResults {
		names = names[:maxLLMResults]
	}
	return names
}

// tokenize splits a query into capitalized-word candidates.
func tokenize(query string) []string {
	var tokens []string
	for _, part := range tokenSplitRe.Split(query, -1) {
		tokens = append(tokens, capitalizedPhraseRe.FindAllString(part, -1)...)
		for _, word := range strings.Fields(part) {
			if len(word) > 2 && word[0] >= 'A' && word[0] <= 'Z' {
				tokens = append(tokens, word)
			}
		}
	}
	return tokens
}

// dedupeNormalized removes case-insensitive duplicates, keeping the first
// display form of each normalized name.
func dedupeNormalized(names []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, name := range names {
		name = strings.TrimSpace(name)
		if len(name) < 2 {
			continue
		}
		key := Normalize(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (r *Resolver) log() *zap.Logger {
	if r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}
