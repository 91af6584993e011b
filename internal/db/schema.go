package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PROJECT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS project SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS logical_id ON project TYPE int;
    DEFINE FIELD IF NOT EXISTS created_at ON project TYPE datetime DEFAULT time::now();

    -- Upsert-by-logical-id semantics require exactly one row per logical ID
    DEFINE INDEX IF NOT EXISTS project_logical_id ON project FIELDS logical_id UNIQUE;

    -- ==========================================================================
    -- ASSET TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS asset SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project ON asset TYPE record<project>;
    DEFINE FIELD IF NOT EXISTS type ON asset TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON asset TYPE string;
    DEFINE FIELD IF NOT EXISTS size ON asset TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON asset TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS asset_project ON asset FIELDS project;
    DEFINE INDEX IF NOT EXISTS asset_project_name ON asset FIELDS project, name UNIQUE;

    -- ==========================================================================
    -- CHUNK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS text ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON chunk TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS position ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS project ON chunk TYPE record<project>;
    DEFINE FIELD IF NOT EXISTS asset ON chunk TYPE record<asset>;
    DEFINE FIELD IF NOT EXISTS created_at ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_project ON chunk FIELDS project;
    -- Chunk order is unique within its (project, asset) pair
    DEFINE INDEX IF NOT EXISTS chunk_asset_position ON chunk FIELDS project, asset, position UNIQUE;

    -- ==========================================================================
    -- TASK EXECUTION LEDGER
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS task_execution SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS task_name ON task_execution TYPE string;
    DEFINE FIELD IF NOT EXISTS args_hash ON task_execution TYPE string;
    DEFINE FIELD IF NOT EXISTS args ON task_execution TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS job_id ON task_execution TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON task_execution TYPE string
        ASSERT $value IN ["PENDING", "STARTED", "RETRY", "SUCCESS", "FAILURE"];
    DEFINE FIELD IF NOT EXISTS result ON task_execution TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS started_at ON task_execution TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON task_execution TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created_at ON task_execution TYPE datetime DEFAULT time::now();

    -- The dedup linearization point: two attempts racing past the lookup
    -- cannot both commit a record for the same logical job
    DEFINE INDEX IF NOT EXISTS task_dedup ON task_execution FIELDS task_name, args_hash, job_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS task_created ON task_execution FIELDS created_at;
`
