package domain

// Chunk is one retrievable unit of text: an email body fragment or a
// single page of an attachment. Chunks are immutable after load.
type Chunk struct {
	ChunkID   string `json:"chunk_id"`
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	PageNo    *int   `json:"page_no,omitempty"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	FromAddr  string `json:"from,omitempty"`
	ToAddr    string `json:"to,omitempty"`
	Date      string `json:"date,omitempty"`
}

const (
	SourceEmail      = "email"
	SourceAttachment = "attachment"
)

// CorpusRecord pairs a chunk with its precomputed normalized embedding.
// The loader builds these once; chunk metadata and vector can never
// drift apart because they live in the same record.
type CorpusRecord struct {
	Chunk  Chunk
	Vector []float32
}

// Message is thread-level metadata kept alongside the corpus for
// timeline rendering.
type Message struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
}

// RetrievedChunk is a chunk annotated with per-channel and combined
// relevance scores for one query. From/to/date are carried so entity
// extraction and the "when" fast path can read them.
type RetrievedChunk struct {
	ChunkID       string  `json:"chunk_id"`
	ThreadID      string  `json:"thread_id"`
	MessageID     string  `json:"message_id"`
	PageNo        *int    `json:"page_no,omitempty"`
	Source        string  `json:"source"`
	Text          string  `json:"text"`
	FromAddr      string  `json:"from_addr,omitempty"`
	ToAddr        string  `json:"to_addr,omitempty"`
	Date          string  `json:"date,omitempty"`
	ScoreBM25     float64 `json:"score_bm25"`
	ScoreSem      float64 `json:"score_sem"`
	ScoreCombined float64 `json:"score_combined"`
}

// Citation points back into the corpus; it does not copy chunk text.
type Citation struct {
	MessageID string `json:"message_id"`
	PageNo    *int   `json:"page_no,omitempty"`
	ChunkID   string `json:"chunk_id"`
}

// Turn outcomes, used for observability labels.
const (
	OutcomeAnswered      = "answered"
	OutcomeLowConfidence = "low_confidence"
	OutcomeNoContent     = "no_content"
)

// TurnResult is everything one ask turn produces for the caller.
type TurnResult struct {
	Answer     string           `json:"answer"`
	Outcome    string           `json:"-"`
	Citations  []Citation       `json:"citations"`
	Rewrite    string           `json:"rewrite"`
	Retrieved  []RetrievedChunk `json:"retrieved"`
	TraceID    string           `json:"trace_id"`
	LatencySec float64          `json:"latency_sec"`
}
