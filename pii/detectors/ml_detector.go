package pii

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// MLDetectorConfig tunes the ML adapter.
type MLDetectorConfig struct {
	// MaxChunkTokens is the model's token budget per call; longer texts are
	// split into overlapping chunks processed sequentially.
	MaxChunkTokens int
	// ChunkOverlap is the number of tokens shared between adjacent chunks so
	// entities spanning a boundary are seen whole by at least one chunk.
	ChunkOverlap int
	// MaxTextLength rejects oversized input during validation.
	MaxTextLength int
	// MaxRetries bounds inference attempts per chunk.
	MaxRetries int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// ConfidenceThreshold drops token predictions below it before merging.
	ConfidenceThreshold float64
	// MaxTokenGap is the maximum character gap between consecutive BIO
	// tokens that still merge into one entity.
	MaxTokenGap int
	// PositionWeighted selects position-weighted confidence averaging for
	// merged entities instead of a simple mean.
	PositionWeighted bool
	// InferenceRate bounds classifier calls per second; zero means no limit.
	InferenceRate rate.Limit
	// InferenceBurst is the limiter burst size.
	InferenceBurst int
}

// DefaultMLDetectorConfig mirrors the model's 512-token budget with a
// 50-token overlap.
func DefaultMLDetectorConfig() MLDetectorConfig {
	return MLDetectorConfig{
		MaxChunkTokens:      512,
		ChunkOverlap:        50,
		MaxTextLength:       1 << 20,
		MaxRetries:          3,
		RetryBaseDelay:      200 * time.Millisecond,
		ConfidenceThreshold: 0.5,
		MaxTokenGap:         2,
		PositionWeighted:    false,
		InferenceRate:       0,
		InferenceBurst:      1,
	}
}

// CallMetrics records per-call observability data for one Detect invocation.
type CallMetrics struct {
	Duration    time.Duration
	TextLength  int
	ChunkCount  int
	EntityCount int
	RetryCount  int
}

// MLDetector adapts a TokenClassifier to the Detector interface: it
// validates input, chunks long texts, retries transient failures with
// bounded backoff, merges BIO token predictions into entities and records
// call metrics. Inference failures degrade to zero ML entities; they never
// escape this detector.
type MLDetector struct {
	classifier TokenClassifier
	config     MLDetectorConfig
	limiter    *rate.Limiter
	lastCall   CallMetrics
}

// NewMLDetector wraps classifier with the given config.
func NewMLDetector(classifier TokenClassifier, config MLDetectorConfig) *MLDetector {
	if config.MaxChunkTokens <= 0 {
		config.MaxChunkTokens = 512
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.MaxChunkTokens {
		config.ChunkOverlap = config.MaxChunkTokens / 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 200 * time.Millisecond
	}
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = 0.5
	}
	var limiter *rate.Limiter
	if config.InferenceRate > 0 {
		burst := config.InferenceBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(config.InferenceRate, burst)
	}
	return &MLDetector{classifier: classifier, config: config, limiter: limiter}
}

// GetName returns the name of this detector.
func (d *MLDetector) GetName() string {
	return "ml_detector"
}

// LastCallMetrics returns the metrics recorded by the most recent Detect.
func (d *MLDetector) LastCallMetrics() CallMetrics {
	return d.lastCall
}

// Detect validates, chunks, classifies and merges. Validation failures and
// exhausted retries return an empty result, not an error: the high-recall
// pass degrades to rule-only detection.
func (d *MLDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	started := time.Now()
	metrics := CallMetrics{TextLength: len(input.Text)}
	defer func() {
		metrics.Duration = time.Since(started)
		d.lastCall = metrics
		log.Printf("[MLDetector] duration=%s text=%dB chunks=%d entities=%d retries=%d",
			metrics.Duration.Round(time.Millisecond), metrics.TextLength,
			metrics.ChunkCount, metrics.EntityCount, metrics.RetryCount)
	}()

	text := input.Text
	if strings.TrimSpace(text) == "" {
		return DetectorOutput{Text: input.Text, Entities: []model.Entity{}}, nil
	}
	if d.config.MaxTextLength > 0 && len(text) > d.config.MaxTextLength {
		log.Printf("[MLDetector] input of %d bytes exceeds limit %d, skipping ML pass",
			len(text), d.config.MaxTextLength)
		return DetectorOutput{Text: input.Text, Entities: []model.Entity{}}, nil
	}

	chunks := chunkByTokens(text, d.config.MaxChunkTokens, d.config.ChunkOverlap)
	metrics.ChunkCount = len(chunks)

	var predictions []TokenPrediction
	seen := make(map[[2]int]string)
	for _, c := range chunks {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return DetectorOutput{Text: input.Text, Entities: []model.Entity{}}, nil
			}
		}
		preds, retries, err := d.classifyWithRetry(ctx, c.text)
		metrics.RetryCount += retries
		if err != nil {
			log.Printf("[MLDetector] chunk at %d failed after %d attempts: %v",
				c.offset, d.config.MaxRetries, err)
			continue
		}
		for _, p := range preds {
			if p.Score < d.config.ConfidenceThreshold {
				continue
			}
			p.StartPos += c.offset
			p.EndPos += c.offset
			// Overlap region duplicates: keep the first prediction seen
			// for a given span and label.
			key := [2]int{p.StartPos, p.EndPos}
			if prev, ok := seen[key]; ok && prev == p.Label {
				continue
			}
			seen[key] = p.Label
			predictions = append(predictions, p)
		}
	}

	entities := d.mergeBIOPredictions(text, predictions)
	metrics.EntityCount = len(entities)
	return DetectorOutput{Text: input.Text, Entities: entities}, nil
}

// classifyWithRetry retries transient inference failures with bounded
// exponential backoff. It returns the number of retries performed.
func (d *MLDetector) classifyWithRetry(ctx context.Context, text string) ([]TokenPrediction, int, error) {
	var lastErr error
	delay := d.config.RetryBaseDelay
	for attempt := 0; attempt < d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		preds, err := d.classifier.Classify(ctx, text)
		if err == nil {
			return preds, attempt, nil
		}
		lastErr = err
	}
	return nil, d.config.MaxRetries - 1, lastErr
}

// mergeBIOPredictions folds BIO-tagged token predictions into entities.
// A B-X token opens an entity; following I-X tokens of the same type within
// MaxTokenGap characters extend it. An I-Y token that does not continue the
// open entity starts a new one instead of merging.
func (d *MLDetector) mergeBIOPredictions(text string, predictions []TokenPrediction) []model.Entity {
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].StartPos < predictions[j].StartPos
	})

	entities := []model.Entity{}
	var open *model.Entity
	var scores []float64

	flush := func() {
		if open == nil {
			return
		}
		open.Text = text[open.StartPos:open.EndPos]
		open.Confidence = d.averageConfidence(scores)
		entities = append(entities, *open)
		open = nil
		scores = nil
	}

	for _, p := range predictions {
		label := p.Label
		if label == "O" || label == "" {
			flush()
			continue
		}
		isInside := strings.HasPrefix(label, "I-")
		base := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
		typ := mapMLLabel(base)

		if isInside && open != nil && open.Type == typ &&
			p.StartPos >= open.EndPos && p.StartPos-open.EndPos <= d.config.MaxTokenGap {
			open.EndPos = p.EndPos
			scores = append(scores, p.Score)
			continue
		}

		// B-X tokens, bare labels, and I-Y tokens that do not continue the
		// open entity all start a new entity.
		flush()
		e := model.NewEntity(typ, "", p.StartPos, p.EndPos, p.Score, model.SourceML)
		open = &e
		scores = []float64{p.Score}
	}
	flush()
	return entities
}

// averageConfidence combines per-token scores, either as a simple mean or
// position-weighted with the leading token counting double.
func (d *MLDetector) averageConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if !d.config.PositionWeighted {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	}
	sum := scores[0] * 2
	weight := 2.0
	for _, s := range scores[1:] {
		sum += s
		weight++
	}
	return sum / weight
}

// Close closes the wrapped classifier.
func (d *MLDetector) Close() error {
	if d.classifier == nil {
		return nil
	}
	return d.classifier.Close()
}

// mapMLLabel translates a model label into the entity type enum.
func mapMLLabel(label string) model.EntityType {
	switch strings.ToUpper(label) {
	case "PER", "PERSON", "FIRSTNAME", "SURNAME", "NAME":
		return model.TypePerson
	case "ORG", "ORGANIZATION", "ORGANISATION", "COMPANY":
		return model.TypeOrganization
	case "LOC", "LOCATION", "CITY", "GPE":
		return model.TypeLocation
	case "ADDRESS", "STREET":
		return model.TypeAddress
	case "EMAIL":
		return model.TypeEmail
	case "PHONE", "TELEPHONENUM", "PHONENUMBER":
		return model.TypePhone
	case "IBAN", "ACCOUNTNUM":
		return model.TypeIBAN
	case "AVS", "AHV", "SOCIALNUM", "SSN":
		return model.TypeSwissAVS
	case "DATE", "DATEOFBIRTH", "TIME":
		return model.TypeDate
	case "AMOUNT", "MONEY", "CURRENCY":
		return model.TypeAmount
	case "VAT", "TAXNUM", "VATNUMBER":
		return model.TypeVATNumber
	}
	return model.TypeUnknown
}

type textChunk struct {
	text   string
	offset int
}

// chunkByTokens splits text into overlapping chunks of at most maxTokens
// whitespace-delimited tokens. Offsets are byte positions of each chunk in
// the full text.
func chunkByTokens(text string, maxTokens, overlap int) []textChunk {
	type span struct{ start, end int }
	var tokens []span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, span{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, span{start, len(text)})
	}

	if len(tokens) <= maxTokens {
		return []textChunk{{text: text, offset: 0}}
	}

	step := maxTokens - overlap
	if step <= 0 {
		step = maxTokens
	}
	var chunks []textChunk
	for i := 0; i < len(tokens); i += step {
		last := i + maxTokens
		if last > len(tokens) {
			last = len(tokens)
		}
		from := tokens[i].start
		to := tokens[last-1].end
		chunks = append(chunks, textChunk{text: text[from:to], offset: from})
		if last == len(tokens) {
			break
		}
	}
	return chunks
}
