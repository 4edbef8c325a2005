package domain

import "time"

// ChangeType classifies a hierarchy code change.
type ChangeType string

const (
	ChangeCreated      ChangeType = "created"
	ChangeUpdated      ChangeType = "updated"
	ChangeMoved        ChangeType = "moved"
	ChangeRestructured ChangeType = "restructured"
)

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeCreated, ChangeUpdated, ChangeMoved, ChangeRestructured:
		return true
	}
	return false
}

// TriggeredBy names what caused a code change.
type TriggeredBy string

const (
	TriggerImport      TriggeredBy = "import"
	TriggerUserMove    TriggeredBy = "user_move"
	TriggerRestructure TriggeredBy = "restructure"
	TriggerMerge       TriggeredBy = "merge"
)

// Valid reports whether t is a known trigger.
func (t TriggeredBy) Valid() bool {
	switch t {
	case TriggerImport, TriggerUserMove, TriggerRestructure, TriggerMerge:
		return true
	}
	return false
}

// Metadata keys written by the hierarchy operations.
const (
	MetaBatchID     = "batchId"
	MetaCascadeFrom = "cascadeFrom"
	MetaActor       = "actor"
	MetaOldParentID = "oldParentId"
	MetaNewParentID = "newParentId"
)

// HierarchyCodeChange is one immutable row of the code audit ledger.
type HierarchyCodeChange struct {
	ID             string         `json:"id"`
	NodeID         string         `json:"nodeId"`
	HierarchyType  HierarchyType  `json:"hierarchyType"`
	OldCode        *string        `json:"oldCode"`
	NewCode        string         `json:"newCode"`
	ChangeType     ChangeType     `json:"changeType"`
	Reason         string         `json:"reason,omitempty"`
	ChangedAt      time.Time      `json:"changedAt"`
	TriggeredBy    TriggeredBy    `json:"triggeredBy"`
	RelatedNodeIDs []string       `json:"relatedNodeIds,omitempty"`
	BatchID        string         `json:"batchId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChangeStatistics aggregates the ledger.
type ChangeStatistics struct {
	TotalChanges int64                   `json:"totalChanges"`
	ByType       map[ChangeType]int64    `json:"byType"`
	ByTrigger    map[TriggeredBy]int64   `json:"byTrigger"`
	ByHierarchy  map[HierarchyType]int64 `json:"byHierarchy"`
}
