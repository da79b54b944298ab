package constants

// Stage is a state of the extraction or classification state machines.
// The values show up in logs and in the batch export.
type Stage string

const (
	StageTextLocal      Stage = "TEXT_LOCAL"
	StageTextModelParse Stage = "TEXT_MODEL_PARSE"
	StageRawModelParse  Stage = "RAW_MODEL_PARSE"
	StageRecovery       Stage = "RECOVERY"
	StageMerge          Stage = "MERGE"
	StageAccept         Stage = "ACCEPT"
	StageReject         Stage = "REJECT"

	StageScore            Stage = "SCORE"
	StageFilter           Stage = "FILTER"
	StageSelectTopN       Stage = "SELECT_TOP_N"
	StageEmbedQuery       Stage = "EMBED_QUERY"
	StageRetrieveEvidence Stage = "RETRIEVE_EVIDENCE"
	StageRerank           Stage = "RERANK"
	StageAcceptTop        Stage = "ACCEPT_TOP"
)

// ExtractionMethod tags which local backend produced a text layer.
type ExtractionMethod string

const (
	MethodLayout ExtractionMethod = "layout"
	MethodTable  ExtractionMethod = "table"
	MethodFast   ExtractionMethod = "fast"
)
