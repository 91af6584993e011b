package models

// Signal classifies the outcome of an ingestion run.
type Signal string

const (
	SignalProcessingSuccess Signal = "PROCESSING_SUCCESS"
	SignalProcessingFailed  Signal = "PROCESSING_FAILED"
	SignalNoFiles           Signal = "NO_FILES_ERROR"
	SignalFileIDError       Signal = "FILE_ID_ERROR"
)

// IngestionOutcome is the result payload of a processing run. It is stored
// in the task ledger so duplicate submissions can return the prior result
// without re-doing work.
type IngestionOutcome struct {
	Signal         Signal `json:"signal"`
	ProcessedFiles int    `json:"processed_files"`
	InsertedChunks int    `json:"inserted_chunks"`
}

// ToMap converts the outcome into the ledger's opaque result payload.
func (o IngestionOutcome) ToMap() map[string]any {
	return map[string]any{
		"signal":          string(o.Signal),
		"processed_files": o.ProcessedFiles,
		"inserted_chunks": o.InsertedChunks,
	}
}

// OutcomeFromMap rebuilds an outcome from a stored ledger result.
// Numeric values come back from storage in whatever width the codec chose.
func OutcomeFromMap(m map[string]any) IngestionOutcome {
	out := IngestionOutcome{}
	if m == nil {
		return out
	}
	if s, ok := m["signal"].(string); ok {
		out.Signal = Signal(s)
	}
	out.ProcessedFiles = intFromAny(m["processed_files"])
	out.InsertedChunks = intFromAny(m["inserted_chunks"])
	return out
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
