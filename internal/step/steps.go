package step

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/script"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// DefaultSchema always exists and is never dropped.
const DefaultSchema = "dbo"

// MetadataTable records the version and schemas of each database.
const MetadataTable = "[dbo].[__SchemaVersion]"

// InitialStep stands for the installed state of a database.
type InitialStep struct{}

func (s *InitialStep) Description() string { return "none" }

func (s *InitialStep) Execute(context.Context, Execer) error { return nil }

type CreateSchemasStep struct {
	Schemas []string
}

func (s *CreateSchemasStep) Description() string {
	return "create schemas " + strings.Join(s.Schemas, ", ")
}

func (s *CreateSchemasStep) Execute(ctx context.Context, db Execer) error {
	for _, name := range s.Schemas {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA "+quoteIdent(name)); err != nil {
			return fmt.Errorf("create schema %s: %w", name, err)
		}
	}
	return nil
}

type DropSchemasStep struct {
	Schemas []string
}

func (s *DropSchemasStep) Description() string {
	return "drop schemas " + strings.Join(s.Schemas, ", ")
}

func (s *DropSchemasStep) Execute(ctx context.Context, db Execer) error {
	for _, name := range s.Schemas {
		if strings.EqualFold(name, DefaultSchema) {
			continue
		}
		if _, err := db.ExecContext(ctx, "DROP SCHEMA "+quoteIdent(name)); err != nil {
			return fmt.Errorf("drop schema %s: %w", name, err)
		}
	}
	return nil
}

// RunScriptStep runs a script file batch by batch. The file is read when
// the step executes, not when the plan is built.
type RunScriptStep struct {
	Path  string
	Label string
}

func (s *RunScriptStep) Description() string {
	if s.Label != "" {
		return "run script " + s.Label
	}
	return "run script " + s.Path
}

func (s *RunScriptStep) Execute(ctx context.Context, db Execer) error {
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	for i, batch := range script.SplitBatches(string(body)) {
		if _, err := db.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("%s batch %d: %w", s.Path, i+1, err)
		}
	}
	return nil
}

// GrantRightsStep gives a service user access to every schema of the
// database.
type GrantRightsStep struct {
	User    string
	Schemas []string
}

func (s *GrantRightsStep) Description() string {
	return "grant rights to " + s.User
}

func (s *GrantRightsStep) Execute(ctx context.Context, db Execer) error {
	for _, name := range s.Schemas {
		q := fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE, EXECUTE ON SCHEMA::%s TO %s", quoteIdent(name), quoteIdent(s.User))
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("grant %s on %s: %w", s.User, name, err)
		}
	}
	return nil
}

// SetMetadataStep persists the version and schema list reached by the plan.
type SetMetadataStep struct {
	Database string
	Version  version.Version
	Schemas  []string
}

func (s *SetMetadataStep) Description() string {
	return fmt.Sprintf("set metadata %s %s [%s]", s.Database, s.Version, strings.Join(s.Schemas, ", "))
}

func (s *SetMetadataStep) Execute(ctx context.Context, db Execer) error {
	for _, q := range s.statements() {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set metadata: %w", err)
		}
	}
	return nil
}

func (s *SetMetadataStep) statements() []string {
	db := quoteLiteral(s.Database)
	return []string{
		fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s ("+
			"DatabaseName NVARCHAR(128) NOT NULL PRIMARY KEY, "+
			"Version NVARCHAR(64) NOT NULL, "+
			"Schemas NVARCHAR(MAX) NOT NULL, "+
			"UpdatedAt DATETIME2 NOT NULL)", strings.ReplaceAll(MetadataTable, "'", "''"), MetadataTable),
		fmt.Sprintf("DELETE FROM %s WHERE DatabaseName = %s", MetadataTable, db),
		fmt.Sprintf("INSERT INTO %s (DatabaseName, Version, Schemas, UpdatedAt) VALUES (%s, %s, %s, SYSUTCDATETIME())",
			MetadataTable, db, quoteLiteral(s.Version.String()), quoteLiteral(strings.Join(s.Schemas, ","))),
	}
}

func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}
