package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mongodb/mongo-go-driver-core/testutil"
)

func TestURI_DefaultsWhenUnset(t *testing.T) {
	t.Setenv(testutil.MongoDBURIEnvVar, "")
	assert.Equal(t, testutil.DefaultURI, testutil.URI())
}

func TestURI_HonorsEnvVar(t *testing.T) {
	t.Setenv(testutil.MongoDBURIEnvVar, "mongodb://example.com:27017")
	assert.Equal(t, "mongodb://example.com:27017", testutil.URI())
}

func TestCluster_RequiresLiveServer(t *testing.T) {
	testutil.RequireLiveServer(t)

	sess, err := testutil.Session()
	assert.NoError(t, err)
	assert.NotNil(t, sess)
}
