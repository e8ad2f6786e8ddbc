package pipeline

// Event types streamed to the client, in emission order for one request.
const (
	EventProcessing    = "processing"
	EventDecomposition = "decomposition"
	EventSearch        = "search"
	EventComplete      = "complete"
	EventError         = "error"
)

// Processing steps announced before each stage.
const (
	StepDecomposition = "decomposition"
	StepSearch        = "search"
	StepAnalysis      = "analysis"
)

// Event is one discrete, ordered stream payload.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Emitter flushes one event to the client. Returning an error aborts the
// run; events already flushed are not retracted.
type Emitter func(Event) error

// ProcessingData announces a pipeline stage.
type ProcessingData struct {
	Step string `json:"step"`
}

// DecompositionData carries the sub-queries. Emitted even when empty.
type DecompositionData struct {
	SubQueries []string `json:"subQueries"`
}

// Progress positions one sub-query within the fan-out.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// SearchData carries one sub-query's partial results, flushed in sub-query
// submission order.
type SearchData struct {
	SubQuery       string         `json:"subQuery"`
	PartialResults []SearchResult `json:"partialResults"`
	Progress       Progress       `json:"progress"`
}

// CompleteData is the terminal success payload.
type CompleteData struct {
	SearchResults  []SearchResult `json:"searchResults"`
	SummaryText    string         `json:"summaryText"`
	OriginalQuery  string         `json:"originalQuery"`
	ConversationID string         `json:"conversationId"`
}

// ErrorData is the terminal failure payload.
type ErrorData struct {
	Message string `json:"message"`
}
