// Package storagetest provides a conformance suite for Boundary
// implementations. It tests the interface contract through the public
// client, not implementation details, so one suite covers every backend.
//
// Usage:
//
//	func TestMyBoundary(t *testing.T) {
//		suite := &storagetest.BoundarySuite{
//			NewBoundary: func(t *testing.T) storage.Boundary {
//				return mystore.New()
//			},
//		}
//		suite.Run(t)
//	}
package storagetest

import (
	"context"
	"testing"

	"cumulus/pkg/storage"
)

// BoundarySuite exercises the full Boundary contract against a fresh
// instance per test.
type BoundarySuite struct {
	// NewBoundary is a factory returning a fresh Boundary for each test.
	// The suite closes it when the test ends.
	NewBoundary func(t *testing.T) storage.Boundary
}

// Run executes all tests in the suite.
func (suite *BoundarySuite) Run(t *testing.T) {
	t.Run("Objects", suite.RunObjectTests)
	t.Run("Metadata", suite.RunMetadataTests)
	t.Run("Listing", suite.RunListTests)
	t.Run("RetryTimes", suite.RunRetryTests)
	t.Run("Usage", suite.RunUsageTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// newService wraps a fresh boundary in a client handle scoped to a fixed
// application and bucket, so assertions see deterministic scope values.
func (suite *BoundarySuite) newService(t *testing.T) *storage.Service {
	t.Helper()
	boundary := suite.NewBoundary(t)
	t.Cleanup(func() {
		if err := boundary.Close(); err != nil {
			t.Errorf("closing boundary: %v", err)
		}
	})
	return storage.NewService(boundary, storage.ServiceOptions{
		App:    "storagetest",
		Bucket: "suite",
	})
}
