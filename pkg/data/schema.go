package data

// Schema versions are plain integers stored as text in the version marker row.
const currentSchemaVersion = 2

const versionMarkerID = "main"

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	id TEXT PRIMARY KEY,
	version TEXT NOT NULL
)`

const createKeySequence = `CREATE SEQUENCE IF NOT EXISTS chapter_key_seq START 1`

const createKeyTable = `
CREATE TABLE IF NOT EXISTS chapter_key (
	chapter_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	key_text TEXT NOT NULL,
	seq BIGINT NOT NULL DEFAULT nextval('chapter_key_seq'),
	PRIMARY KEY (chapter_id, user_id)
)`

const createDivisionTable = `
CREATE TABLE IF NOT EXISTS division (
	division_id BIGINT PRIMARY KEY,
	is_linear BOOLEAN NOT NULL
)`

// currentSchema creates a fresh store at currentSchemaVersion.
var currentSchema = []string{
	createVersionTable,
	createKeySequence,
	createKeyTable,
	createDivisionTable,
}

type migration struct {
	version    int
	statements []string
}

// migrations are applied in ascending version order to stores older than
// currentSchemaVersion. Every statement must be safe to run twice.
var migrations = []migration{
	{version: 1, statements: []string{createKeySequence, createKeyTable}},
	{version: 2, statements: []string{createDivisionTable}},
}
