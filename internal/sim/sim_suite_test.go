package sim_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDriverLifecycle(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Driver Lifecycle Suite")
}
