package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create triggers table
			CREATE TABLE triggers (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				chain_id UUID,
				name VARCHAR(255) NOT NULL,
				entity_type VARCHAR(50) NOT NULL CHECK (entity_type IN ('work_order', 'task', 'deliverable')),
				status_from VARCHAR(100),    -- NULL acts as a wildcard
				status_to VARCHAR(100),      -- NULL acts as a wildcard
				priority INT NOT NULL DEFAULT 0,
				enabled BOOLEAN NOT NULL DEFAULT true,
				trigger_conditions JSONB,
				last_triggered_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_triggers_team_entity ON triggers(team_id, entity_type);
			CREATE INDEX idx_triggers_enabled ON triggers(enabled);
			CREATE INDEX idx_triggers_chain_id ON triggers(chain_id);

			-- Create chains table
			CREATE TABLE chains (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				agent_id VARCHAR(255),
				enabled BOOLEAN NOT NULL DEFAULT true,
				config JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_chains_team_id ON chains(team_id);
		`,
		2: `
			-- Create workflow_states table (run checkpoints)
			CREATE TABLE workflow_states (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				agent_id VARCHAR(255),
				chain_id UUID,
				workflow_kind VARCHAR(50) NOT NULL,
				entity_type VARCHAR(50) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'paused', 'completed', 'failed', 'rejected')),
				current_node VARCHAR(100),
				state_data JSONB DEFAULT '{}',
				approval_required BOOLEAN NOT NULL DEFAULT false,
				paused_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				failure_reason TEXT
			);

			CREATE INDEX idx_workflow_states_entity ON workflow_states(entity_type, entity_id, started_at);
			CREATE INDEX idx_workflow_states_team_status ON workflow_states(team_id, status);

			-- Create inbox_items table (human approvals)
			CREATE TABLE inbox_items (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				ref_type VARCHAR(50) NOT NULL,
				ref_id VARCHAR(255) NOT NULL,
				title VARCHAR(255),
				urgency VARCHAR(20),
				confidence DOUBLE PRECISION,
				approved_at TIMESTAMP WITH TIME ZONE,
				rejected_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_inbox_items_team_id ON inbox_items(team_id);
			CREATE INDEX idx_inbox_items_ref ON inbox_items(ref_type, ref_id);
		`,
		3: `
			-- Create agent_configs table (per-team settings and budgets)
			CREATE TABLE agent_configs (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT false,
				mode VARCHAR(20) NOT NULL DEFAULT 'staged',
				daily_cap_cents BIGINT NOT NULL DEFAULT 0,
				monthly_cap_cents BIGINT NOT NULL DEFAULT 0,
				permissions JSONB DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- Create work_orders table
			CREATE TABLE work_orders (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(100),
				budget_cents BIGINT NOT NULL DEFAULT 0,
				tags JSONB DEFAULT '[]',
				pm_copilot_mode VARCHAR(20),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_work_orders_team_id ON work_orders(team_id);
			CREATE INDEX idx_work_orders_status ON work_orders(status);

			-- Create deliverables and tasks tables (materialized suggestions)
			CREATE TABLE deliverables (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				work_order_id UUID NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(100),
				due_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_deliverables_work_order ON deliverables(work_order_id);

			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				team_id VARCHAR(255) NOT NULL,
				work_order_id UUID NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(100),
				due_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_work_order ON tasks(work_order_id);
		`,
	}
}
