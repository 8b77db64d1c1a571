package store

// Times are stored as unix seconds. Banks, answers and essay scores are JSON
// documents: the bank is regraded and replaced as a whole. bank_rev counts
// bank writes; a submission is only stored against the revision it was
// graded with.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	start_time INTEGER NOT NULL DEFAULT 0,
	end_time INTEGER NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 60,
	bank_json TEXT NOT NULL DEFAULT '{"mc":[],"or":[]}',
	bank_rev BIGINT NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS exams_owner_idx ON exams(owner_id);

CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL,
	mc_answers_json TEXT NOT NULL DEFAULT '{}',
	or_answers_json TEXT NOT NULL DEFAULT '{}',
	or_scores_json TEXT NOT NULL DEFAULT '{}',
	auto_score REAL NOT NULL DEFAULT 0,
	max_auto_score REAL NOT NULL DEFAULT 0,
	manual_score REAL NOT NULL DEFAULT 0,
	total_score REAL NOT NULL DEFAULT 0,
	submitted_at INTEGER NOT NULL,
	reviewed_at INTEGER,
	UNIQUE (exam_id, student_id)
);

CREATE TABLE IF NOT EXISTS imported_documents (
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	sha256 TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	num_mc INTEGER NOT NULL DEFAULT 0,
	num_or INTEGER NOT NULL DEFAULT 0,
	imported_at INTEGER NOT NULL,
	PRIMARY KEY (exam_id, sha256)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS exams (
	id BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	title TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	start_time BIGINT NOT NULL DEFAULT 0,
	end_time BIGINT NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 60,
	bank_json TEXT NOT NULL DEFAULT '{"mc":[],"or":[]}',
	bank_rev BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS exams_owner_idx ON exams(owner_id);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL,
	mc_answers_json TEXT NOT NULL DEFAULT '{}',
	or_answers_json TEXT NOT NULL DEFAULT '{}',
	or_scores_json TEXT NOT NULL DEFAULT '{}',
	auto_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_auto_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	manual_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	submitted_at BIGINT NOT NULL,
	reviewed_at BIGINT,
	UNIQUE (exam_id, student_id)
);

CREATE TABLE IF NOT EXISTS imported_documents (
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	sha256 TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	num_mc INTEGER NOT NULL DEFAULT 0,
	num_or INTEGER NOT NULL DEFAULT 0,
	imported_at BIGINT NOT NULL,
	PRIMARY KEY (exam_id, sha256)
);
`
