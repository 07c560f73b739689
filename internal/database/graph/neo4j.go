// Package graph mirrors recovery sessions into Neo4j so strategies, pressure
// levels and hosts can be traversed together.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

var _ monitor.Recorder = (*Neo4jClient)(nil)

// Neo4jClient records memguard activity as a graph.
type Neo4jClient struct {
	driver  neo4j.DriverWithContext
	dbName  string
	agentID string
}

// NewNeo4jClient creates a new Neo4j client.
func NewNeo4jClient(uri, username, password, dbName, agentID string) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Neo4jClient{
		driver:  driver,
		dbName:  dbName,
		agentID: agentID,
	}, nil
}

func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// RecordSnapshot keeps the latest measurement on the Host node. Only the
// newest state is stored; the full series lives in DuckDB.
func (c *Neo4jClient) RecordSnapshot(ctx context.Context, snap engine.Snapshot) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (h:Host {agent_id: $agent_id})
			SET h.last_seen = $collected_at,
				h.percent_used = $percent_used,
				h.pressure_level = $level,
				h.rss_mb = $rss_mb
		`, snapshotParams(c.agentID, snap))
	})
	return err
}

// RecordRecovery writes the session node, links it to its host, to the
// trigger and final pressure levels and to every strategy it applied.
func (c *Neo4jClient) RecordRecovery(ctx context.Context, s monitor.Session) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (h:Host {agent_id: $agent_id})
			CREATE (s:RecoverySession {
				session_id: $session_id,
				started_at: $started_at,
				duration_ms: $duration_ms,
				trigger_percent: $trigger_percent,
				improved: $improved,
				forced: $forced
			})
			CREATE (h)-[:RAN]->(s)
			MERGE (t:PressureLevel {name: $trigger_level})
			MERGE (f:PressureLevel {name: $final_level})
			CREATE (s)-[:TRIGGERED_AT]->(t)
			CREATE (s)-[:ENDED_AT]->(f)
		`, sessionParams(c.agentID, s)); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}

		rows := resultRows(s)
		if len(rows) == 0 {
			return nil, nil
		}
		if _, err := tx.Run(ctx, `
			MATCH (s:RecoverySession {session_id: $session_id})
			UNWIND $results AS r
			MERGE (st:Strategy {name: r.strategy})
			CREATE (s)-[:APPLIED {
				seq: r.seq,
				action: r.action,
				duration_ms: r.duration_ms,
				errors: r.errors
			}]->(st)
		`, map[string]any{
			"session_id": s.ID,
			"results":    rows,
		}); err != nil {
			return nil, fmt.Errorf("link strategies: %w", err)
		}
		return nil, nil
	})
	return err
}

func snapshotParams(agentID string, snap engine.Snapshot) map[string]any {
	return map[string]any{
		"agent_id":     agentID,
		"collected_at": snap.Timestamp.UTC().Format(time.RFC3339),
		"percent_used": snap.PercentUsed,
		"level":        snap.Level.String(),
		"rss_mb":       snap.ResidentSetMB,
	}
}

func sessionParams(agentID string, s monitor.Session) map[string]any {
	return map[string]any{
		"agent_id":        agentID,
		"session_id":      s.ID,
		"started_at":      s.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms":     s.Duration.Milliseconds(),
		"trigger_percent": s.Trigger.PercentUsed,
		"trigger_level":   s.Trigger.Level.String(),
		"final_level":     s.FinalLevel.String(),
		"improved":        s.Improved,
		"forced":          s.Forced(),
	}
}

// resultRows converts results to the []any of maps UNWIND expects.
func resultRows(s monitor.Session) []any {
	rows := make([]any, 0, len(s.Results))
	for i, res := range s.Results {
		errs := make([]any, len(res.Errors))
		for j, e := range res.Errors {
			errs[j] = e
		}
		rows = append(rows, map[string]any{
			"seq":         int64(i),
			"strategy":    res.Strategy,
			"action":      res.Action,
			"duration_ms": res.Duration.Milliseconds(),
			"errors":      errs,
		})
	}
	return rows
}
