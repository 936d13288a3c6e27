package selfheal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTableStatementsCoverCoreTables(t *testing.T) {
	t.Parallel()

	want := []string{"videos", "frames", "ocr_frames", "ocr_index", "jobs"}
	for _, table := range want {
		found := false
		for _, stmt := range createTableStatements {
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table) {
				found = true
				break
			}
		}
		assert.Truef(t, found, "missing CREATE TABLE IF NOT EXISTS for %s", table)
	}
}

func TestDriftColumnsAreIdempotentDDL(t *testing.T) {
	t.Parallel()

	for _, c := range driftColumns {
		assert.Contains(t, c.ddl, "ADD COLUMN IF NOT EXISTS")
		assert.Contains(t, c.ddl, c.column)
	}
}
