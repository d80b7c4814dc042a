package store

import "fmt"

// Stats summarizes the state of the memory collection.
type Stats struct {
	ByStatus       map[string]int `json:"by_status"`
	ByLevel        map[int]int    `json:"by_level"`
	SimilarEdges   int            `json:"similar_edges"`
	DerivedEdges   int            `json:"derived_edges"`
	FeedbackEvents int            `json:"feedback_events"`
	Vectors        int            `json:"vectors"`
}

// CollectStats gathers collection-wide counts for the stats surfaces.
func (db *DB) CollectStats() (*Stats, error) {
	s := &Stats{
		ByStatus: make(map[string]int),
		ByLevel:  make(map[int]int),
	}

	rows, err := db.Query(`SELECT status, COUNT(*) FROM memories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		s.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query(`SELECT level, COUNT(*) FROM memories GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("stats by level: %w", err)
	}
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan level count: %w", err)
		}
		s.ByLevel[level] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM relationships WHERE rel_type = 'similar'`, &s.SimilarEdges},
		{`SELECT COUNT(*) FROM relationships WHERE rel_type = 'derived_from'`, &s.DerivedEdges},
		{`SELECT COUNT(*) FROM feedback_events`, &s.FeedbackEvents},
		{`SELECT COUNT(*) FROM mem_vectors`, &s.Vectors},
	}
	for _, c := range counts {
		if err := db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats count: %w", err)
		}
	}

	return s, nil
}
