package model

// University is one institution from the input list. QSRank is 0 when the
// institution is unranked.
type University struct {
	Institution string `json:"institution"`
	Domain      string `json:"domain"`
	Country     string `json:"country"`
	Region      string `json:"region"`
	QSRank      int    `json:"qs_rank,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// HasRank reports whether a QS rank is known.
func (u University) HasRank() bool { return u.QSRank > 0 }

// ResearchProfile describes the user's research interests.
type ResearchProfile struct {
	Core                 []string `json:"core_keywords" yaml:"core_keywords"`
	Adjacent             []string `json:"adjacent_keywords" yaml:"adjacent_keywords"`
	Negative             []string `json:"negative_keywords" yaml:"negative_keywords"`
	PreferredDepartments []string `json:"preferred_departments" yaml:"preferred_departments"`
	QueryTemplates       []string `json:"query_templates" yaml:"query_templates"`
}

// Keywords returns core followed by adjacent keywords.
func (p ResearchProfile) Keywords() []string {
	out := make([]string, 0, len(p.Core)+len(p.Adjacent))
	out = append(out, p.Core...)
	return append(out, p.Adjacent...)
}

// Empty reports whether the profile carries no positive keywords.
func (p ResearchProfile) Empty() bool {
	return len(p.Core) == 0 && len(p.Adjacent) == 0
}
