// Package models defines the data types that flow through the Prism
// retrieval pipeline.
package models

import "time"

// Intent is one of a fixed, closed set of query categories.
type Intent string

const (
	IntentArchetype  Intent = "archetype"
	IntentPortfolio  Intent = "portfolio"
	IntentRisk       Intent = "risk"
	IntentMonteCarlo Intent = "monte_carlo"
	IntentESG        Intent = "esg"
	IntentGeneral    Intent = "general"
)

// Grade is the relevance verdict assigned to a passage by the grader.
type Grade string

const (
	GradeRelevant   Grade = "relevant"
	GradePartial    Grade = "partial"
	GradeIrrelevant Grade = "irrelevant"
	GradeUngraded   Grade = "ungraded"
)

// Quality summarises retrieval confidence for a query.
type Quality string

const (
	QualityGood      Quality = "good"
	QualityAmbiguous Quality = "ambiguous"
	QualityPoor      Quality = "poor"
)

// Priority levels carried in passage metadata. Higher priority documents
// receive a larger fusion boost.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Query is the unit of work: one user question against one domain.
type Query struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	Domain     string                 `json:"domain"`
	PromptName string                 `json:"prompt_name,omitempty"`
	AppContext map[string]interface{} `json:"app_context,omitempty"`
	ThreadID   string                 `json:"thread_id,omitempty"`
}

// HasAppContext reports whether the query carries user-computed results.
// Such queries bypass the response cache entirely.
func (q *Query) HasAppContext() bool {
	return len(q.AppContext) > 0
}

// Passage is a retrieved chunk with its scores and grade.
type Passage struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	SourcePath string                 `json:"source_path"`
	ChunkIndex int                    `json:"chunk_index"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	FusedScore    float64 `json:"fused_score"`

	Grade           Grade   `json:"grade"`
	GradeConfidence float64 `json:"grade_confidence"`
}

// DocumentType returns the document_type metadata field, if present.
func (p *Passage) DocumentType() string {
	if p.Metadata == nil {
		return ""
	}
	if t, ok := p.Metadata["document_type"].(string); ok {
		return t
	}
	return ""
}

// Priority returns the priority metadata field, defaulting to normal.
func (p *Passage) Priority() string {
	if p.Metadata != nil {
		if pr, ok := p.Metadata["priority"].(string); ok && pr != "" {
			return pr
		}
	}
	return PriorityNormal
}

// StageTimings records per-stage wall time in milliseconds.
type StageTimings struct {
	RetrieveMs float64 `json:"retrieve"`
	GradeMs    float64 `json:"grade"`
	RerankMs   float64 `json:"rerank"`
	GenerateMs float64 `json:"generate"`
	TotalMs    float64 `json:"total"`
}

// PipelineState flows through every stage of one pipeline pass. Fields are
// monotonically added; stages never destructively rewrite earlier results.
type PipelineState struct {
	Query          Query
	RetrievalQuery string // query text after expansion; logs keep Query.Text
	Intent         Intent
	Candidates     []Passage
	Survivors      []Passage
	Answer         string
	Citations      []Citation
	Quality        Quality
	Timings        StageTimings
}

// Citation points a reader back at a survivor passage.
type Citation struct {
	SourcePath string  `json:"source_path"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// QueryResponse is the wire shape returned by both pipeline paths.
type QueryResponse struct {
	ID        string       `json:"id"`
	Answer    string       `json:"answer"`
	Citations []Citation   `json:"citations"`
	Quality   Quality      `json:"quality"`
	Intent    Intent       `json:"intent"`
	Timings   StageTimings `json:"timings"`
	ThreadID  string       `json:"thread_id,omitempty"`
}

// QueryMetrics is one record in the append-only metrics stream.
type QueryMetrics struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Domain    string       `json:"domain"`
	Intent    Intent       `json:"intent"`
	Quality   Quality      `json:"quality"`
	Timings   StageTimings `json:"timings"`
	DocCount  int          `json:"doc_count"`
	TopScore  float64      `json:"top_score"`
	Endpoint  string       `json:"endpoint"` // main or fallback
	Error     string       `json:"error,omitempty"`
}

// Endpoint labels for metrics records.
const (
	EndpointMain     = "main"
	EndpointFallback = "fallback"
)

// FeedbackRating is a thumbs up or down on a response.
type FeedbackRating string

const (
	RatingPositive FeedbackRating = "+"
	RatingNegative FeedbackRating = "-"
)

// FeedbackSubmission is what the dashboard posts back after a query.
type FeedbackSubmission struct {
	QueryID string         `json:"query_id"`
	Rating  FeedbackRating `json:"rating"`
	Detail  string         `json:"detail,omitempty"`
}

// FeedbackRecord is a stored submission with identity and time attached.
type FeedbackRecord struct {
	FeedbackID string         `json:"feedback_id"`
	QueryID    string         `json:"query_id"`
	Rating     FeedbackRating `json:"rating"`
	Detail     string         `json:"detail,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// FeedbackStats aggregates stored feedback.
type FeedbackStats struct {
	Total        int     `json:"total"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
	PositiveRate float64 `json:"positive_rate"`
}
