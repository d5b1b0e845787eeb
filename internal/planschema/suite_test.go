package planschema_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPlanSchema(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Plan Schema Suite")
}
