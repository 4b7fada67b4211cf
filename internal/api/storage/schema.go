package storage

// Schema creates the tables the API service needs. Every statement is
// safe to re-run on start-up.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(80)  NOT NULL,
		email         VARCHAR(120) NOT NULL,
		password_hash VARCHAR(120) NOT NULL,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS repair_jobs (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		customer_name     VARCHAR(100) NOT NULL,
		device_type       VARCHAR(50)  NOT NULL,
		device_model      VARCHAR(100) NOT NULL,
		issue_description TEXT         NOT NULL,
		status            VARCHAR(20)  NOT NULL DEFAULT 'pending',
		priority          VARCHAR(10)  NOT NULL DEFAULT 'medium',
		estimated_cost    DOUBLE PRECISION,
		actual_cost       DOUBLE PRECISION,
		notes             TEXT,
		images            JSONB        NOT NULL DEFAULT '[]'::jsonb,
		created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT repair_jobs_status_check CHECK (status IN ('pending', 'in_progress', 'completed', 'cancelled')),
		CONSTRAINT repair_jobs_priority_check CHECK (priority IN ('low', 'medium', 'high'))
	)`,
	`CREATE INDEX IF NOT EXISTS repair_jobs_user_created_idx ON repair_jobs (user_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS repair_jobs_images_idx ON repair_jobs USING GIN (images)`,
}
