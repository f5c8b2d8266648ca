package evaluation

// RelevanceThreshold is the lowest judgment counted as relevant.
const RelevanceThreshold = 1

// DefaultKs are the cutoffs reported when none are given.
var DefaultKs = []int{1, 5, 10}

// Ranked is one entity of a feature ranking.
type Ranked struct {
	Entity    string  `json:"entity"`
	Score     float64 `json:"score"`
	Relevance int     `json:"relevance"`
}

// QueryResult contains the metrics of one feature for a single query.
type QueryResult struct {
	Feature   string          `json:"feature"`
	Query     string          `json:"query"`
	Ranking   []Ranked        `json:"ranking,omitempty"`
	NDCG      map[int]float64 `json:"ndcg"`      // NDCG@K for various K
	Recall    map[int]float64 `json:"recall"`    // Recall@K
	Precision map[int]float64 `json:"precision"` // Precision@K
	MRR       float64         `json:"mrr"`
	AP        float64         `json:"ap"` // Average Precision
}

// Summary aggregates the metrics of one feature across queries.
type Summary struct {
	Feature       string          `json:"feature"`
	QueryCount    int             `json:"query_count"`
	MeanNDCG      map[int]float64 `json:"mean_ndcg"`
	MeanRecall    map[int]float64 `json:"mean_recall"`
	MeanPrecision map[int]float64 `json:"mean_precision"`
	MeanMRR       float64         `json:"mean_mrr"`
	MAP           float64         `json:"map"`
}
