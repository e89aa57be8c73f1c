package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// Ensure QAEngine implements the interface.
var _ driving.QAService = (*QAEngine)(nil)

// Fixed responses for questions with nothing to answer from.
const (
	NoContentAnswer = "I don't have any indexed classroom content to answer this question. " +
		"Try syncing your courses first to index assignments and announcements."
	NoRelevantAnswer = "I couldn't find relevant information to answer this question in your " +
		"classroom materials. This question might be outside the scope of your indexed course content."
	NoContentExplanation = "No matching content was found in indexed classroom materials."
)

// supportRatio is how close to the top score a second source must be to
// be quoted in the answer text.
const supportRatio = 0.8

// QAEngine answers questions by extracting text from retrieved chunks.
type QAEngine struct {
	embedder driven.EmbeddingService
	index    driven.IndexStore
	cfg      domain.QAConfig
}

// NewQAEngine creates a QA engine. Zero-valued config fields take defaults.
func NewQAEngine(embedder driven.EmbeddingService, index driven.IndexStore, cfg domain.QAConfig) *QAEngine {
	def := domain.DefaultQAConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = def.ExcerptLength
	}
	if cfg.AnswerLength <= 0 {
		cfg.AnswerLength = def.AnswerLength
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	if cfg.TopWeight == 0 && cfg.SpreadPenalty == 0 {
		cfg.TopWeight = def.TopWeight
		cfg.SpreadPenalty = def.SpreadPenalty
	}
	if cfg.HighConfidence == 0 && cfg.LowConfidence == 0 {
		cfg.HighConfidence = def.HighConfidence
		cfg.LowConfidence = def.LowConfidence
	}
	return &QAEngine{embedder: embedder, index: index, cfg: cfg}
}

// Answer retrieves the chunks admitted by filter and composes an attributed answer.
func (q *QAEngine) Answer(ctx context.Context, question string, filter domain.AccessFilter) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	// An empty filter answers exactly like an empty index so that callers
	// cannot probe for content outside their courses.
	if filter.IsEmpty() {
		logger.Debug("QA with empty access filter: %v", domain.ErrAccessDenied)
		return noAnswer(NoContentAnswer), nil
	}

	vec, err := q.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", domain.ErrEmbeddingFailure, err)
	}

	hits, err := q.index.Search(ctx, vec, filter, q.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return noAnswer(NoContentAnswer), nil
	}

	relevant := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= q.cfg.MinRelevance {
			relevant = append(relevant, h)
		}
	}
	if len(relevant) == 0 {
		return noAnswer(NoRelevantAnswer), nil
	}

	scores := make([]float64, len(relevant))
	for i, h := range relevant {
		scores[i] = h.Similarity
	}
	conf := ScoreConfidence(scores, ConfidenceWeightsFromConfig(q.cfg))
	sources := q.buildSources(relevant)

	logger.Debug("QA retrieved %d chunk(s), %d relevant, confidence %.2f (%s)",
		len(hits), len(relevant), conf.Score, conf.Factor)

	return &domain.Answer{
		Text:        q.composeAnswer(relevant, conf),
		Confidence:  conf.Score,
		Sources:     sources,
		Explanation: q.explain(sources, conf),
		Factor:      conf.Factor,
	}, nil
}

func noAnswer(text string) *domain.Answer {
	return &domain.Answer{
		Text:        text,
		Confidence:  0,
		Sources:     []domain.Source{},
		Explanation: NoContentExplanation,
		Factor:      domain.FactorNone,
	}
}

// composeAnswer quotes the best chunk and, when a different unit scores
// close to it, a short passage from that unit too.
func (q *QAEngine) composeAnswer(relevant []domain.ScoredChunk, conf ConfidenceBreakdown) string {
	top := relevant[0]

	var b strings.Builder
	if conf.Score < q.cfg.LowConfidence {
		fmt.Fprintf(&b, "I found some related content, but I'm not confident enough to give a definitive "+
			"answer (%d%% confidence). Here's what I found, but please verify with your instructor:\n\n",
			percent(conf.Score))
	}
	b.WriteString(sourcePrefix(top.Chunk))
	b.WriteString("\n\n")
	b.WriteString(truncateWords(top.Chunk.Text, q.cfg.AnswerLength))

	for _, h := range relevant[1:] {
		if h.Chunk.UnitID == top.Chunk.UnitID {
			continue
		}
		if h.Similarity >= top.Similarity*supportRatio {
			b.WriteString("\n\n")
			b.WriteString(sourcePrefix(h.Chunk))
			b.WriteString("\n\n")
			b.WriteString(truncateWords(h.Chunk.Text, q.cfg.AnswerLength/2))
		}
		break
	}
	return b.String()
}

func sourcePrefix(c domain.Chunk) string {
	switch c.Kind {
	case domain.KindAssignment:
		return fmt.Sprintf("According to the assignment '%s':", c.Title)
	case domain.KindAnnouncement:
		return "From a class announcement:"
	case domain.KindMaterial:
		return fmt.Sprintf("From the course material '%s':", c.Title)
	default:
		return "Based on classroom content:"
	}
}

// buildSources lists one source per unit, best hit first.
func (q *QAEngine) buildSources(relevant []domain.ScoredChunk) []domain.Source {
	sources := make([]domain.Source, 0, len(relevant))
	seen := make(map[string]struct{}, len(relevant))
	for _, h := range relevant {
		if _, ok := seen[h.Chunk.UnitID]; ok {
			continue
		}
		seen[h.Chunk.UnitID] = struct{}{}
		sources = append(sources, domain.Source{
			Type:           h.Chunk.Kind,
			Title:          h.Chunk.Title,
			Excerpt:        truncateWords(h.Chunk.Text, q.cfg.ExcerptLength),
			RelevanceScore: math.Round(h.Similarity*1e4) / 1e4,
			UnitID:         h.Chunk.UnitID,
			CourseID:       h.Chunk.CourseID,
		})
		if len(sources) == q.cfg.MaxSources {
			break
		}
	}
	return sources
}

// explain renders the rule-based justification for a confidence value.
func (q *QAEngine) explain(sources []domain.Source, conf ConfidenceBreakdown) string {
	tier := "low"
	switch {
	case conf.Score >= q.cfg.HighConfidence:
		tier = "high"
	case conf.Score >= q.cfg.LowConfidence:
		tier = "moderate"
	}

	var factor string
	switch {
	case conf.Factor == domain.FactorAgreement:
		factor = fmt.Sprintf("Confidence was lowered because the retrieved sources disagree "+
			"(scores spread around a %d%% average).", percent(conf.Mean))
	case conf.Top >= q.cfg.HighConfidence:
		factor = fmt.Sprintf("Confidence is driven by a strong match with the top source (%d%% similarity).",
			percent(conf.Top))
	default:
		factor = fmt.Sprintf("Confidence is limited by the similarity of the best match (%d%% similarity).",
			percent(conf.Top))
	}

	out := fmt.Sprintf("This answer is based on %s from your classroom (%s confidence, %d%% match). %s",
		describeSources(sources), tier, percent(conf.Score), factor)
	if conf.Score < q.cfg.LowConfidence {
		out += fmt.Sprintf(" Confidence is below the minimum threshold of %d%%. The answer may not be accurate.",
			percent(q.cfg.LowConfidence))
	}
	return out
}

func describeSources(sources []domain.Source) string {
	counts := make(map[domain.ContentKind]int)
	for _, s := range sources {
		counts[s.Type]++
	}
	var parts []string
	for _, k := range []domain.ContentKind{domain.KindAssignment, domain.KindAnnouncement, domain.KindMaterial} {
		if n := counts[k]; n > 0 {
			parts = append(parts, plural(n, string(k)))
		}
	}
	if len(parts) == 0 {
		return plural(len(sources), "source")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

// truncateWords cuts s to at most limit runes, preferring a word boundary
// in the second half, and marks the cut with an ellipsis.
func truncateWords(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t.,;:") + "..."
}
