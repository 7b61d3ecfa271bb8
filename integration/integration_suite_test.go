// Package integration contains end-to-end integration tests for mend.
// These tests verify the complete flow from HTTP request to alert
// escalation and remediation pipeline progress.
package integration

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mend Integration Suite")
}
