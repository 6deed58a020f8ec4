package domain

// RetrievedChunk is a ranked retrieval candidate. Depending on the search
// mode that produced it, only some score fields are populated: a rank of 0
// means the chunk was absent from that side's candidate list.
type RetrievedChunk struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// DocumentID is the chunk's parent document.
	DocumentID int64

	// Filename is the parent document's filename.
	Filename string

	// ChunkIndex is the chunk's ordinal within the document.
	ChunkIndex int

	// Text is a bounded slice of the chunk content.
	Text string

	// LexicalScore is the cover-density relevance score.
	LexicalScore float64

	// LexicalRank is the 1-based rank in the lexical candidate list.
	LexicalRank int

	// VectorDist is the cosine distance to the query vector.
	VectorDist float64

	// VectorSim is 1 - VectorDist.
	VectorSim float64

	// VectorRank is the 1-based rank in the vector candidate list.
	VectorRank int

	// HybridScore is the weighted reciprocal-rank-fusion score.
	HybridScore float64

	// MatchedLexical and MatchedVector report which candidate lists the
	// chunk appeared in.
	MatchedLexical bool
	MatchedVector  bool
}

// Hybrid search parameter bounds.
const (
	MinHybridLimit = 1
	MaxHybridLimit = 20
)

// HybridParams configures one hybrid search call. All limits and weights
// are caller-supplied per call; identical inputs against identical index
// state produce identical output ordering.
type HybridParams struct {
	// Limit is the final result count after fusion.
	Limit int

	// TextChars bounds the chunk text returned per result.
	TextChars int

	// FullTextCandidateLimit bounds the lexical candidate list.
	FullTextCandidateLimit int

	// VectorCandidateLimit bounds the vector candidate list.
	VectorCandidateLimit int

	// FullTextWeight scales the lexical fusion term. 0 disables the
	// lexical mode's influence without a separate code path.
	FullTextWeight float64

	// VectorWeight scales the vector fusion term.
	VectorWeight float64

	// RRFRankConstant is the k in 1/(k + rank).
	RRFRankConstant int
}

// DefaultHybridParams returns the standard fusion configuration.
func DefaultHybridParams() HybridParams {
	return HybridParams{
		Limit:                  10,
		TextChars:              120,
		FullTextCandidateLimit: 50,
		VectorCandidateLimit:   50,
		FullTextWeight:         0.5,
		VectorWeight:           0.5,
		RRFRankConstant:        60,
	}
}

// Clamped returns a copy with every field forced into a sane range.
func (p HybridParams) Clamped() HybridParams {
	def := DefaultHybridParams()
	if p.Limit < MinHybridLimit {
		p.Limit = def.Limit
	}
	if p.Limit > MaxHybridLimit {
		p.Limit = MaxHybridLimit
	}
	if p.TextChars < 1 {
		p.TextChars = def.TextChars
	}
	if p.FullTextCandidateLimit < 1 {
		p.FullTextCandidateLimit = def.FullTextCandidateLimit
	}
	if p.VectorCandidateLimit < 1 {
		p.VectorCandidateLimit = def.VectorCandidateLimit
	}
	if p.FullTextWeight < 0 {
		p.FullTextWeight = def.FullTextWeight
	}
	if p.VectorWeight < 0 {
		p.VectorWeight = def.VectorWeight
	}
	if p.RRFRankConstant < 1 {
		p.RRFRankConstant = def.RRFRankConstant
	}
	return p
}
