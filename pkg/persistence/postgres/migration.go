package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow documents, one row per immutable version. The current
			-- version of a workflow is its highest version row.
			CREATE TABLE workflow_versions (
				id UUID NOT NULL,
				version INTEGER NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (id, version)
			);

			CREATE INDEX idx_workflow_versions_status ON workflow_versions(status);
			CREATE INDEX idx_workflow_versions_created_at ON workflow_versions(created_at);
		`,
		2: `
			CREATE TABLE runs (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				workflow_version INTEGER NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				state VARCHAR(50) NOT NULL,
				cursor VARCHAR(255) NOT NULL DEFAULT '',
				resume_at TIMESTAMP WITH TIME ZONE,
				history JSONB NOT NULL DEFAULT '[]',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_workflow_id ON runs(workflow_id);
			CREATE INDEX idx_runs_state_resume_at ON runs(state, resume_at);
			CREATE INDEX idx_runs_entity_id ON runs(entity_id);
		`,
	}
}
