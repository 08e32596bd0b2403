package retrieval

import (
	"fmt"
	"strings"

	"github.com/bull/campus-rag/internal/domain"
)

// Strategy names a search algorithm.
type Strategy string

const (
	StrategySimilarity Strategy = "similarity"
	StrategyMMR        Strategy = "mmr"
	StrategyHybrid     Strategy = "hybrid"
	// StrategyLexical ranks by BM25 alone and needs no query embedding.
	StrategyLexical Strategy = "lexical"
)

// Strategies lists every supported search strategy.
var Strategies = []Strategy{StrategyHybrid, StrategySimilarity, StrategyMMR, StrategyLexical}

// ParseStrategy validates a strategy name. Unknown names are configuration errors.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Strategies {
		if s == known {
			return s, nil
		}
	}
	return "", &domain.ConfigError{
		Field:  "search.strategy",
		Reason: fmt.Sprintf("unknown strategy %q (want hybrid, similarity, mmr or lexical)", name),
	}
}

// Fusion names how hybrid search combines vector and lexical scores.
type Fusion string

const (
	// FusionWeighted min-max normalizes each list to [0,1] and sums with weights.
	FusionWeighted Fusion = "weighted"
	// FusionRRF sums weighted reciprocal ranks, ignoring raw score scales.
	FusionRRF Fusion = "rrf"
)

// ParseFusion validates a fusion method name.
func ParseFusion(name string) (Fusion, error) {
	switch f := Fusion(strings.ToLower(strings.TrimSpace(name))); f {
	case FusionWeighted, FusionRRF:
		return f, nil
	default:
		return "", &domain.ConfigError{Field: "search.fusion", Reason: fmt.Sprintf("unknown fusion %q (want weighted or rrf)", name)}
	}
}

const (
	DefaultK               = 5
	DefaultLambda          = 0.5
	DefaultFetchMultiplier = 4
	DefaultRRFConstant     = 60
)

// Options parameterizes one search call.
type Options struct {
	Strategy Strategy `yaml:"strategy"`
	K        int      `yaml:"k"`
	// Lambda trades relevance (1) against diversity (0) for MMR.
	Lambda float64 `yaml:"lambda"`
	// FetchMultiplier sizes the candidate pool for MMR and each hybrid list: K*FetchMultiplier.
	FetchMultiplier int     `yaml:"fetch_multiplier"`
	Fusion          Fusion  `yaml:"fusion"`
	VectorWeight    float64 `yaml:"vector_weight"`
	LexicalWeight   float64 `yaml:"lexical_weight"`
	RRFConstant     float64 `yaml:"rrf_constant"`
}

// DefaultOptions returns hybrid search with equal weights.
func DefaultOptions() Options {
	return Options{
		Strategy:        StrategyHybrid,
		K:               DefaultK,
		Lambda:          DefaultLambda,
		FetchMultiplier: DefaultFetchMultiplier,
		Fusion:          FusionWeighted,
		VectorWeight:    0.5,
		LexicalWeight:   0.5,
		RRFConstant:     DefaultRRFConstant,
	}
}

// Validate checks every parameter. It runs before any search work.
func (o Options) Validate() error {
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	if o.K <= 0 {
		return &domain.ConfigError{Field: "search.k", Reason: fmt.Sprintf("must be positive, got %d", o.K)}
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		return &domain.ConfigError{Field: "search.lambda", Reason: fmt.Sprintf("must be in [0, 1], got %g", o.Lambda)}
	}
	if o.FetchMultiplier < 1 {
		return &domain.ConfigError{Field: "search.fetch_multiplier", Reason: fmt.Sprintf("must be at least 1, got %d", o.FetchMultiplier)}
	}
	if _, err := ParseFusion(string(o.Fusion)); err != nil {
		return err
	}
	if o.VectorWeight < 0 || o.LexicalWeight < 0 || o.VectorWeight+o.LexicalWeight == 0 {
		return &domain.ConfigError{
			Field:  "search.weights",
			Reason: fmt.Sprintf("must be non-negative and not both zero, got vector=%g lexical=%g", o.VectorWeight, o.LexicalWeight),
		}
	}
	if o.RRFConstant <= 0 {
		return &domain.ConfigError{Field: "search.rrf_constant", Reason: fmt.Sprintf("must be positive, got %g", o.RRFConstant)}
	}
	return nil
}

func (o Options) normalized() Options {
	o.Strategy, _ = ParseStrategy(string(o.Strategy))
	o.Fusion, _ = ParseFusion(string(o.Fusion))
	return o
}

func (o Options) poolSize() int {
	return o.K * o.FetchMultiplier
}
