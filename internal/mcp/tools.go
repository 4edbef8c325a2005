package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// HistoryInput selects a node's ledger rows.
type HistoryInput struct {
	NodeID        string `json:"node_id" jsonschema:"id of the node"`
	HierarchyType string `json:"hierarchy_type,omitempty" jsonschema:"function or organization; empty for both"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum rows to return (default 50)"`
}

// FeedInput limits a ledger feed.
type FeedInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum rows to return (default 50)"`
}

// BatchInput names one restructure batch.
type BatchInput struct {
	BatchID string `json:"batch_id" jsonschema:"batch id returned by a restructure"`
}

// NodeInput names a node for relation reads.
type NodeInput struct {
	NodeID string `json:"node_id" jsonschema:"id of the node"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum items to return"`
}

// StatsInput takes no arguments.
type StatsInput struct{}

// ChangeOutput is one ledger row.
type ChangeOutput struct {
	ID             string         `json:"id"`
	NodeID         string         `json:"node_id"`
	HierarchyType  string         `json:"hierarchy_type"`
	OldCode        string         `json:"old_code,omitempty"`
	NewCode        string         `json:"new_code"`
	ChangeType     string         `json:"change_type"`
	TriggeredBy    string         `json:"triggered_by"`
	Reason         string         `json:"reason,omitempty"`
	ChangedAt      string         `json:"changed_at"`
	BatchID        string         `json:"batch_id,omitempty"`
	RelatedNodeIDs []string       `json:"related_node_ids,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChangesOutput is a list of ledger rows.
type ChangesOutput struct {
	Changes []ChangeOutput `json:"changes"`
	Count   int            `json:"count"`
	Total   int64          `json:"total,omitempty"`
}

// StatsOutput aggregates the ledger.
type StatsOutput struct {
	TotalChanges int64            `json:"total_changes"`
	ByType       map[string]int64 `json:"by_type"`
	ByTrigger    map[string]int64 `json:"by_trigger"`
	ByHierarchy  map[string]int64 `json:"by_hierarchy"`
}

// LinkOutput is a related item or backlink.
type LinkOutput struct {
	NodeID           string   `json:"node_id"`
	Title            string   `json:"title"`
	ReferenceType    string   `json:"reference_type,omitempty"`
	Strength         int      `json:"strength"`
	SharedAttributes []string `json:"shared_attributes"`
}

// LinksOutput lists related items or backlinks.
type LinksOutput struct {
	NodeID string       `json:"node_id"`
	Items  []LinkOutput `json:"items"`
	Total  int          `json:"total"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "node_history",
		Description: "Hierarchy code changes of one node, newest first",
	}, s.handleNodeHistory)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_changes",
		Description: "Newest hierarchy code changes across all nodes",
	}, s.handleRecentChanges)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "batch_changes",
		Description: "All changes of one restructure batch in write order",
	}, s.handleBatchChanges)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "change_statistics",
		Description: "Counts of code changes by type, trigger and hierarchy",
	}, s.handleStatistics)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_related",
		Description: "Nodes most similar to a node",
	}, s.handleRelated)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_backlinks",
		Description: "Classified backlinks into a node (manual, similar, sibling, related)",
	}, s.handleBacklinks)
}

func toChanges(rows []domain.HierarchyCodeChange) []ChangeOutput {
	out := make([]ChangeOutput, len(rows))
	for i, r := range rows {
		out[i] = ChangeOutput{
			ID:             r.ID,
			NodeID:         r.NodeID,
			HierarchyType:  string(r.HierarchyType),
			NewCode:        r.NewCode,
			ChangeType:     string(r.ChangeType),
			TriggeredBy:    string(r.TriggeredBy),
			Reason:         r.Reason,
			ChangedAt:      r.ChangedAt.Format(time.RFC3339Nano),
			BatchID:        r.BatchID,
			RelatedNodeIDs: r.RelatedNodeIDs,
			Metadata:       r.Metadata,
		}
		if r.OldCode != nil {
			out[i].OldCode = *r.OldCode
		}
	}
	return out
}

func (s *Server) handleNodeHistory(ctx context.Context, _ *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, ChangesOutput, error) {
	rows, err := s.svc.Audit.GetNodeHistory(ctx, in.NodeID, service.HistoryFilter{
		HierarchyType: domain.HierarchyType(in.HierarchyType),
		Limit:         in.Limit,
	})
	if err != nil {
		return nil, ChangesOutput{}, err
	}
	return nil, ChangesOutput{Changes: toChanges(rows), Count: len(rows)}, nil
}

func (s *Server) handleRecentChanges(ctx context.Context, _ *mcp.CallToolRequest, in FeedInput) (*mcp.CallToolResult, ChangesOutput, error) {
	rows, total, err := s.svc.Audit.GetRecentChanges(ctx, in.Limit)
	if err != nil {
		return nil, ChangesOutput{}, err
	}
	return nil, ChangesOutput{Changes: toChanges(rows), Count: len(rows), Total: total}, nil
}

func (s *Server) handleBatchChanges(ctx context.Context, _ *mcp.CallToolRequest, in BatchInput) (*mcp.CallToolResult, ChangesOutput, error) {
	rows, err := s.svc.Audit.GetBatchChanges(ctx, in.BatchID)
	if err != nil {
		return nil, ChangesOutput{}, err
	}
	return nil, ChangesOutput{Changes: toChanges(rows), Count: len(rows)}, nil
}

func (s *Server) handleStatistics(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.svc.Audit.GetChangeStatistics(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	out := StatsOutput{
		TotalChanges: st.TotalChanges,
		ByType:       make(map[string]int64, len(st.ByType)),
		ByTrigger:    make(map[string]int64, len(st.ByTrigger)),
		ByHierarchy:  make(map[string]int64, len(st.ByHierarchy)),
	}
	for k, v := range st.ByType {
		out.ByType[string(k)] = v
	}
	for k, v := range st.ByTrigger {
		out.ByTrigger[string(k)] = v
	}
	for k, v := range st.ByHierarchy {
		out.ByHierarchy[string(k)] = v
	}
	return nil, out, nil
}

func (s *Server) handleRelated(ctx context.Context, _ *mcp.CallToolRequest, in NodeInput) (*mcp.CallToolResult, LinksOutput, error) {
	items, err := s.svc.Relations.GetRelated(ctx, in.NodeID, in.Limit)
	if err != nil {
		return nil, LinksOutput{}, err
	}
	out := LinksOutput{NodeID: in.NodeID, Items: make([]LinkOutput, len(items)), Total: len(items)}
	for i, it := range items {
		out.Items[i] = LinkOutput{
			NodeID:           it.Node.ID,
			Title:            it.Node.Title,
			Strength:         it.SimilarityScore,
			SharedAttributes: it.SharedAttributes,
		}
	}
	return nil, out, nil
}

func (s *Server) handleBacklinks(ctx context.Context, _ *mcp.CallToolRequest, in NodeInput) (*mcp.CallToolResult, LinksOutput, error) {
	set, err := s.svc.Relations.GetBacklinks(ctx, in.NodeID, in.Limit)
	if err != nil {
		return nil, LinksOutput{}, err
	}
	out := LinksOutput{NodeID: in.NodeID, Items: make([]LinkOutput, len(set.Backlinks)), Total: set.Total}
	for i, bl := range set.Backlinks {
		out.Items[i] = LinkOutput{
			NodeID:           bl.Node.ID,
			Title:            bl.Node.Title,
			ReferenceType:    string(bl.ReferenceType),
			Strength:         bl.Strength,
			SharedAttributes: bl.SharedAttributes,
		}
	}
	return nil, out, nil
}
