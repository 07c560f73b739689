package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// StrategyStats summarizes how one strategy has fared across sessions.
type StrategyStats struct {
	Strategy string `json:"strategy"`
	Sessions int64  `json:"sessions"`
	Improved int64  `json:"improved"`
	Failures int64  `json:"failures"` // applications that reported per-handle errors
}

// LevelTransition counts sessions that started at From and ended at To.
type LevelTransition struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Sessions int64  `json:"sessions"`
}

// StrategyEffectiveness reports, per strategy, how many sessions applied it
// and how many of those ended with lower pressure.
func (c *Neo4jClient) StrategyEffectiveness(ctx context.Context) ([]StrategyStats, error) {
	records, err := c.read(ctx, `
		MATCH (h:Host {agent_id: $agent_id})-[:RAN]->(s:RecoverySession)-[a:APPLIED]->(st:Strategy)
		RETURN st.name AS strategy,
			count(s) AS sessions,
			sum(CASE WHEN s.improved THEN 1 ELSE 0 END) AS improved,
			sum(CASE WHEN size(a.errors) > 0 THEN 1 ELSE 0 END) AS failures
		ORDER BY strategy
	`, map[string]any{"agent_id": c.agentID})
	if err != nil {
		return nil, err
	}

	out := make([]StrategyStats, 0, len(records))
	for _, rec := range records {
		st, err := strategyStatsFrom(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// LevelTransitions groups this host's sessions by trigger and final level.
func (c *Neo4jClient) LevelTransitions(ctx context.Context) ([]LevelTransition, error) {
	records, err := c.read(ctx, `
		MATCH (h:Host {agent_id: $agent_id})-[:RAN]->(s:RecoverySession),
			(s)-[:TRIGGERED_AT]->(t:PressureLevel),
			(s)-[:ENDED_AT]->(f:PressureLevel)
		RETURN t.name AS trigger_level, f.name AS final_level, count(s) AS sessions
		ORDER BY sessions DESC, trigger_level, final_level
	`, map[string]any{"agent_id": c.agentID})
	if err != nil {
		return nil, err
	}

	out := make([]LevelTransition, 0, len(records))
	for _, rec := range records {
		var lt LevelTransition
		if lt.From, _, err = neo4j.GetRecordValue[string](rec, "trigger_level"); err != nil {
			return nil, err
		}
		if lt.To, _, err = neo4j.GetRecordValue[string](rec, "final_level"); err != nil {
			return nil, err
		}
		if lt.Sessions, _, err = neo4j.GetRecordValue[int64](rec, "sessions"); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, nil
}

func (c *Neo4jClient) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.dbName,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph query failed: %w", err)
	}
	return result.([]*neo4j.Record), nil
}

func strategyStatsFrom(rec *neo4j.Record) (StrategyStats, error) {
	var (
		st  StrategyStats
		err error
	)
	if st.Strategy, _, err = neo4j.GetRecordValue[string](rec, "strategy"); err != nil {
		return st, err
	}
	if st.Sessions, _, err = neo4j.GetRecordValue[int64](rec, "sessions"); err != nil {
		return st, err
	}
	if st.Improved, _, err = neo4j.GetRecordValue[int64](rec, "improved"); err != nil {
		return st, err
	}
	if st.Failures, _, err = neo4j.GetRecordValue[int64](rec, "failures"); err != nil {
		return st, err
	}
	return st, nil
}
