package cli

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with the given args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_OK(t *testing.T) {
	out, err := runCommand(t,
		"validate", "testdata/types",
		"--type", "Person",
		"--markup", "id,firstName,lastName")
	require.NoError(t, err)
	assert.Contains(t, out, "markup is valid")
}

func TestValidate_MarkupError(t *testing.T) {
	out, err := runCommand(t,
		"--format", "json",
		"validate", "testdata/types",
		"--type", "Person",
		"--markup", "firstName,id")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FIRST_COLUMN_NOT_ID")
}

func TestValidate_UnknownType(t *testing.T) {
	out, err := runCommand(t,
		"--format", "json",
		"validate", "testdata/types",
		"--type", "Nope",
		"--markup", "id")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_RECORD_TYPE")
}

func TestValidate_TypesDirNotFound(t *testing.T) {
	out, err := runCommand(t,
		"--format", "json",
		"validate", "testdata/nope",
		"--type", "Person",
		"--markup", "id")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestParse_RowsFile(t *testing.T) {
	rowsPath := filepath.Join(t.TempDir(), "rows.json")
	rows := `[
		[1, "A", "B", 1, 9.5],
		[1, "A", "B", 1, 8.0],
		{"id": 2, "firstName": "C"}
	]`
	require.NoError(t, os.WriteFile(rowsPath, []byte(rows), 0o644))

	out, err := runCommand(t,
		"--format", "json",
		"parse", "testdata/types",
		"--type", "Person",
		"--markup", "id,firstName,lastName,scores,s$",
		"--rows", rowsPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"scores":[9.5,8]`)
	assert.Contains(t, out, `"referredRecords":{}`)
}

func TestParse_DataError(t *testing.T) {
	rowsPath := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(rowsPath, []byte(`[[null, "A", "B"]]`), 0o644))

	out, err := runCommand(t,
		"--format", "json",
		"parse", "testdata/types",
		"--type", "Person",
		"--markup", "id,firstName,lastName",
		"--rows", rowsPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "NULL_RECORD_ID")
}

func TestQuery_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "people.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE persons (id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT);
		INSERT INTO persons VALUES (1, 'A', 'B'), (2, 'C', 'D');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := runCommand(t,
		"--format", "json",
		"query", "testdata/types",
		"--type", "Person",
		"--markup", "id,firstName,lastName",
		"--db", dbPath,
		"--sql", "SELECT id, first_name, last_name FROM persons ORDER BY id")
	require.NoError(t, err)
	assert.Contains(t, out, `"firstName":"A"`)
	assert.Contains(t, out, `"firstName":"C"`)
}

func TestQuery_DatabaseNotFound(t *testing.T) {
	_, err := runCommand(t,
		"query", "testdata/types",
		"--type", "Person",
		"--markup", "id",
		"--db", filepath.Join(t.TempDir(), "missing.db"),
		"--sql", "SELECT id FROM persons")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml",
		"validate", "testdata/types", "--type", "Person", "--markup", "id")
	require.Error(t, err)
}
