package mode

// Strategy is the retrieval strategy a caller asks for.
type Strategy string

// Search strategy constants.
const (
	// Hybrid blends semantic and keyword retrieval. It is the default.
	Hybrid   Strategy = "hybrid"
	Semantic Strategy = "semantic"
	Keyword  Strategy = "keyword"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Hybrid || s == Semantic || s == Keyword
}

// Served maps a successful strategy to its served mode.
func (s Strategy) Served() Served {
	return Served(s)
}

// Served is the mode that actually produced a response.
type Served string

// Served mode constants.
const (
	ServedHybrid   Served = "hybrid"
	ServedSemantic Served = "semantic"
	ServedKeyword  Served = "keyword"
	// KeywordFallback means semantic or hybrid retrieval failed and keyword
	// retrieval was substituted.
	KeywordFallback Served = "keyword_fallback"
)

// SemanticAvailable reports whether the semantic path was usable for the response.
func (m Served) SemanticAvailable() bool {
	return m != KeywordFallback
}
