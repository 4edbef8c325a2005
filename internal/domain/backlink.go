package domain

import "time"

// ReferenceType classifies why a backlink exists.
type ReferenceType string

const (
	RefManual  ReferenceType = "manual"
	RefSimilar ReferenceType = "similar"
	RefSibling ReferenceType = "sibling"
	RefRelated ReferenceType = "related"
)

// ReferenceTypes is ordered by precedence, strongest first.
var ReferenceTypes = []ReferenceType{RefManual, RefSimilar, RefSibling, RefRelated}

// Rank returns the precedence of r; lower wins.
func (r ReferenceType) Rank() int {
	for i, t := range ReferenceTypes {
		if t == r {
			return i
		}
	}
	return len(ReferenceTypes)
}

// ManualLink is an explicitly declared connection between two nodes.
type ManualLink struct {
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RelatedItem is a node ranked by similarity to another.
type RelatedItem struct {
	Node             *Node    `json:"node"`
	SimilarityScore  int      `json:"similarityScore"`
	SharedAttributes []string `json:"sharedAttributes"`
}

// Backlink is a derived link into a node.
type Backlink struct {
	Node             *Node         `json:"node"`
	ReferenceType    ReferenceType `json:"referenceType"`
	Strength         int           `json:"strength"`
	SharedAttributes []string      `json:"sharedAttributes"`
}

// BacklinkSet is the flat and grouped view of a node's backlinks.
type BacklinkSet struct {
	NodeID    string                       `json:"nodeId"`
	Backlinks []Backlink                   `json:"backlinks"`
	Grouped   map[ReferenceType][]Backlink `json:"grouped"`
	Total     int                          `json:"total"`
}

// SharedAttributes lists the tags, segment and category two nodes have in common.
func SharedAttributes(a, b *Node) []string {
	out := []string{}
	seen := make(map[string]bool, len(a.Tags))
	for _, t := range a.Tags {
		seen[t] = true
	}
	dup := map[string]bool{}
	for _, t := range b.Tags {
		if seen[t] && !dup[t] {
			dup[t] = true
			out = append(out, "tag:"+t)
		}
	}
	if a.SegmentCode != "" && a.SegmentCode == b.SegmentCode {
		out = append(out, "segment:"+a.SegmentCode)
	}
	if a.CategoryCode != "" && a.CategoryCode == b.CategoryCode {
		out = append(out, "category:"+a.CategoryCode)
	}
	return out
}
