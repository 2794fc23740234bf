package contracts

// IndexSource is the index membership an instrument was listed under
type IndexSource string

const (
	IndexSP500       IndexSource = "SP500"
	IndexNasdaq100   IndexSource = "NASDAQ100"
	IndexDJIA        IndexSource = "DJIA"
	IndexDAX         IndexSource = "DAX"
	IndexEuroStoxx50 IndexSource = "EUROSTOXX50"
	IndexCAC40       IndexSource = "CAC40"

	// IndexCatalyst marks names surfaced only by the catalyst detector
	IndexCatalyst IndexSource = "CATALYST"
)

// IndexSources returns the six universe feeds in merge order
func IndexSources() []IndexSource {
	return []IndexSource{IndexSP500, IndexNasdaq100, IndexDJIA, IndexDAX, IndexEuroStoxx50, IndexCAC40}
}

// Instrument is immutable within a run
type Instrument struct {
	ID    string      `json:"id"`
	Name  string      `json:"name,omitempty"`
	Index IndexSource `json:"index"`
}

// MergeInstruments concatenates lists and collapses duplicates by ID.
// The first occurrence wins, so earlier lists take precedence for Name/Index.
func MergeInstruments(lists ...[]Instrument) []Instrument {
	seen := make(map[string]struct{})
	merged := make([]Instrument, 0)

	for _, list := range lists {
		for _, inst := range list {
			if inst.ID == "" {
				continue
			}
			if _, dup := seen[inst.ID]; dup {
				continue
			}
			seen[inst.ID] = struct{}{}
			merged = append(merged, inst)
		}
	}

	return merged
}

// ExcludeIDs returns pool minus every instrument whose ID is in exclude
func ExcludeIDs(pool []Instrument, exclude map[string]struct{}) []Instrument {
	if len(exclude) == 0 {
		return pool
	}

	out := make([]Instrument, 0, len(pool))
	for _, inst := range pool {
		if _, skip := exclude[inst.ID]; skip {
			continue
		}
		out = append(out, inst)
	}
	return out
}
