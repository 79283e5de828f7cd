package preprocess_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"etm/internal/preprocess"
	"etm/internal/schema"
)

func testSchema() *schema.Database {
	db := schema.NewDatabase()
	emp := schema.NewTable("emp", []string{"id", "name"})
	db.AddTable(emp)
	return db
}

func TestBacktickToDoubleQuote(t *testing.T) {
	got := preprocess.Run("SELECT `name` FROM emp", testSchema())
	assert.Equal(t, `SELECT "name" FROM emp`, got)
}

func TestDoubleQuotedSchemaWordStaysDoubleQuoted(t *testing.T) {
	got := preprocess.Run(`SELECT * FROM emp WHERE "name" = 'bob'`, testSchema())
	assert.Contains(t, got, `"name"`)
}

func TestDoubleQuotedLiteralBecomesSingleQuoted(t *testing.T) {
	got := preprocess.Run(`SELECT * FROM emp WHERE dept = "engineering"`, testSchema())
	assert.Contains(t, got, `'engineering'`)
}

func TestDatetimeCallGetsNowArgument(t *testing.T) {
	got := preprocess.Run("SELECT datetime() FROM emp", testSchema())
	assert.Contains(t, got, "datetime('now')")
}
