package repositories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatements(t *testing.T) {
	for driver, count := range map[string]int{DriverMySQL: 3, DriverSQLite: 5} {
		t.Run(driver, func(t *testing.T) {
			statements, err := schemaStatements(driver)
			require.NoError(t, err)
			require.Len(t, statements, count)
			for _, stmt := range statements {
				assert.True(t, strings.HasPrefix(stmt, "CREATE "), "statement was cut inside a body: %q", stmt)
				assert.True(t, strings.HasSuffix(stmt, ")"), "statement was cut inside a body: %q", stmt)
			}
		})
	}

	_, err := schemaStatements("postgres")
	require.Error(t, err)
}
