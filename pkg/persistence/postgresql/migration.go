package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create pipelines table
			CREATE TABLE pipelines (
				id UUID PRIMARY KEY,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_pipelines_created_at ON pipelines(created_at);

			-- Create jobs table
			CREATE TABLE jobs (
				id UUID PRIMARY KEY,
				pipeline_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL,
				progress DOUBLE PRECISION NOT NULL DEFAULT 0,
				current_seed INT NOT NULL DEFAULT 0,
				total_seeds INT NOT NULL DEFAULT 0,
				current_block VARCHAR(255),
				records_generated INT NOT NULL DEFAULT 0,
				records_failed INT NOT NULL DEFAULT 0,
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_jobs_pipeline_id ON jobs(pipeline_id);
			CREATE INDEX idx_jobs_status ON jobs(status);
			CREATE INDEX idx_jobs_started_at ON jobs(started_at);

			-- Create records table
			CREATE TABLE records (
				id UUID PRIMARY KEY,
				job_id UUID,
				pipeline_id UUID,
				output TEXT NOT NULL DEFAULT '',
				metadata JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected', 'edited')),
				failed BOOLEAN NOT NULL DEFAULT FALSE,
				error TEXT,
				trace JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_records_job_id ON records(job_id);
			CREATE INDEX idx_records_pipeline_id ON records(pipeline_id);
			CREATE INDEX idx_records_status ON records(status);
			CREATE INDEX idx_records_created_at ON records(created_at);
		`,
	}
}
