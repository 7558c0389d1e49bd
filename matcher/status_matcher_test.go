// SPDX-License-Identifier: MIT

//go:build matchers
// +build matchers

package matcher

import (
	"github.com/unitd-project/unitd"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("matchers", func() {

	Context("HaveUnitStatus", func() {

		It("doesn't accept anything other than a StatusKind or GomegaMatcher when creating the matcher", func() {
			Expect(func() {
				_ = HaveUnitStatus(42)
			}).To(PanicWith(ContainSubstring("must be a unitd.StatusKind or GomegaMatcher")))
			Expect(func() {
				_ = HaveUnitStatus(unitd.Stopped)
			}).NotTo(Panic())
			Expect(func() {
				_ = HaveUnitStatus(Equal(unitd.Stopped))
			}).NotTo(Panic())
		})

		It("requires an actual *unitd.Unit or *unitd.Status", func() {
			var st unitd.Status
			st.Set(unitd.StartedRunning)

			m := HaveUnitStatus(unitd.StartedRunning)
			Expect(m.Match(&st)).To(BeTrue())

			m = HaveUnitStatus(unitd.Stopped)
			Expect(m.Match(&st)).To(BeFalse())

			_, err := m.Match("not a unit")
			Expect(err).To(HaveOccurred())
		})

	})

})
