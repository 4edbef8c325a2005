package domain

import "time"

// HierarchyType names one of the two independent coded trees a node lives in.
type HierarchyType string

const (
	HierarchyFunction     HierarchyType = "function"
	HierarchyOrganization HierarchyType = "organization"
)

// HierarchyTypes lists every hierarchy in a stable order.
var HierarchyTypes = []HierarchyType{HierarchyFunction, HierarchyOrganization}

// Valid reports whether h is a known hierarchy.
func (h HierarchyType) Valid() bool {
	return h == HierarchyFunction || h == HierarchyOrganization
}

// Other returns the opposite hierarchy.
func (h HierarchyType) Other() HierarchyType {
	if h == HierarchyFunction {
		return HierarchyOrganization
	}
	return HierarchyFunction
}

// Node is a classified content item. Only its hierarchy fields are owned here;
// the rest is written by the import path and read for similarity.
type Node struct {
	ID                   string    `json:"id"                   db:"id"`
	Title                string    `json:"title"                db:"title"`
	Description          string    `json:"description"          db:"description"`
	FunctionParentID     string    `json:"functionParentId"     db:"function_parent_id"`
	OrganizationParentID string    `json:"organizationParentId" db:"organization_parent_id"`
	FunctionCode         string    `json:"functionCode"         db:"function_code"`
	OrganizationCode     string    `json:"organizationCode"     db:"organization_code"`
	SegmentCode          string    `json:"segmentCode"          db:"segment_code"`
	CategoryCode         string    `json:"categoryCode"         db:"category_code"`
	ContentTypeCode      string    `json:"contentTypeCode"      db:"content_type_code"`
	Tags                 []string  `json:"tags"                 db:"tags"`
	CreatedAt            time.Time `json:"createdAt"            db:"created_at"`
	UpdatedAt            time.Time `json:"updatedAt"            db:"updated_at"`
}

// ParentID returns the node's parent in the given hierarchy ("" for a root).
func (n *Node) ParentID(h HierarchyType) string {
	if h == HierarchyOrganization {
		return n.OrganizationParentID
	}
	return n.FunctionParentID
}

// Code returns the node's code in the given hierarchy.
func (n *Node) Code(h HierarchyType) string {
	if h == HierarchyOrganization {
		return n.OrganizationCode
	}
	return n.FunctionCode
}

// SetPosition assigns parent and code in one hierarchy.
func (n *Node) SetPosition(h HierarchyType, parentID, code string) {
	if h == HierarchyOrganization {
		n.OrganizationParentID = parentID
		n.OrganizationCode = code
		return
	}
	n.FunctionParentID = parentID
	n.FunctionCode = code
}
