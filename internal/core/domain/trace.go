package domain

import "time"

// TraceRetrieved is the per-chunk score summary stored in a trace;
// chunk text is deliberately not persisted.
type TraceRetrieved struct {
	ChunkID       string  `json:"chunk_id"`
	ThreadID      string  `json:"thread_id"`
	MessageID     string  `json:"message_id"`
	PageNo        *int    `json:"page_no"`
	ScoreBM25     float64 `json:"score_bm25"`
	ScoreSem      float64 `json:"score_sem"`
	ScoreCombined float64 `json:"score_combined"`
}

// TraceRecord is the immutable audit record of one ask turn. ThreadID
// is null when the session could not be resolved at logging time.
type TraceRecord struct {
	TraceID   string           `json:"trace_id"`
	SessionID string           `json:"session_id"`
	ThreadID  *string          `json:"thread_id"`
	UserText  string           `json:"user_text"`
	Rewrite   string           `json:"rewrite"`
	Retrieved []TraceRetrieved `json:"retrieved"`
	Answer    string           `json:"answer"`
	Citations []Citation       `json:"citations"`
	Timestamp time.Time        `json:"timestamp"`
}
