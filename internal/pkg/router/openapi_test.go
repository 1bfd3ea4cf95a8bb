package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenAPIDocumentIsValid makes sure the served API document stays a valid
// OpenAPI 3 spec and keeps describing the routes the portal actually mounts.
func TestOpenAPIDocumentIsValid(t *testing.T) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(filepath.Join("..", "..", "..", "public", "docs", "v1", "openapi.yml"))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/api/v1/plans",
		"/api/v1/purchase",
		"/api/v1/status/{device_id}",
		"/api/v1/stats",
		"/healthz",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "missing documented path %s", path)
	}
}
