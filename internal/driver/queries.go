package driver

const (
	SaveTranscriptNodeQuery = `
		MERGE (c:Case {id: $case_id})
		MERGE (t:Transcript {id: $id})
		SET t.case_id = $case_id,
			t.title = $title,
			t.witness_name = $witness_name,
			t.created_at = $created_at
		MERGE (w:Witness {name: $witness_name})
		MERGE (t)-[:PART_OF]->(c)
		MERGE (w)-[:TESTIFIED_IN]->(t)
		RETURN t.id AS id
	`

	SaveContradictionEdgeQuery = `
		MATCH (a:Transcript {id: $transcript1_id})
		MATCH (b:Transcript {id: $transcript2_id})
		MERGE (a)-[r:CONTRADICTS {id: $id}]->(b)
		SET r.case_id = $case_id,
			r.run_id = $run_id,
			r.description = $description,
			r.excerpt1 = $excerpt1,
			r.excerpt2 = $excerpt2,
			r.confidence = $confidence,
			r.created_at = $created_at
		RETURN r.id AS id
	`

	CaseContradictionsQuery = `
		MATCH (a:Transcript)-[r:CONTRADICTS {case_id: $case_id}]->(b:Transcript)
		RETURN a.id AS transcript1_id, b.id AS transcript2_id, r.description AS description
		ORDER BY r.id
	`
)
