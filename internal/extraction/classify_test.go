package extraction

import (
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func collectRaw(seq iter.Seq[Candidate]) []string {
	out := make([]string, 0)
	for c := range seq {
		out = append(out, c.RawText)
	}
	return out
}

var _ = Describe("Classify", func() {
	var (
		lines []string
		pools Pools
	)

	JustBeforeEach(func() {
		pools = Classify(ExtractCandidates(lines))
	})

	Describe("Totals", func() {
		BeforeEach(func() {
			lines = []string{"$23.23", "$4.234", "4.324", "1024"}
		})

		It("should require a currency marker and exactly two decimals", func() {
			Expect(collectRaw(pools.Totals())).To(Equal([]string{"$23.23"}))
		})
	})

	Describe("Quantities", func() {
		BeforeEach(func() {
			lines = []string{"$20.32", "$4.333", "4.18", "$4.18", "3.144"}
		})

		It("should require the absence of a currency marker", func() {
			Expect(collectRaw(pools.Quantities())).To(Equal([]string{"4.18", "3.144"}))
		})
	})

	Describe("UnitPrices", func() {
		BeforeEach(func() {
			lines = []string{"$20.32", "$4.333", "4.18", "4.333"}
		})

		It("should require exactly three decimals regardless of marker", func() {
			Expect(collectRaw(pools.UnitPrices())).To(Equal([]string{"$4.333", "4.333"}))
		})
	})

	When("a candidate fits several roles", func() {
		BeforeEach(func() {
			lines = []string{"4.204"}
		})

		It("should appear in both unit prices and quantities", func() {
			Expect(collectRaw(pools.UnitPrices())).To(Equal([]string{"4.204"}))
			Expect(collectRaw(pools.Quantities())).To(Equal([]string{"4.204"}))
		})

		It("should leave the candidate list intact", func() {
			Expect(pools.Len()).To(Equal(1))
			Expect(collectRaw(pools.Candidates())).To(Equal([]string{"4.204"}))
		})
	})

	When("the source slice is modified after classifying", func() {
		It("should not change the pools", func() {
			candidates := ExtractCandidates([]string{"$20.32"})
			pools := Classify(candidates)
			candidates[0].RawText = "changed"
			Expect(collectRaw(pools.Totals())).To(Equal([]string{"$20.32"}))
		})
	})

	When("iteration stops early", func() {
		BeforeEach(func() {
			lines = []string{"$1.00", "$2.00", "$3.00"}
		})

		It("should stop yielding", func() {
			seen := 0
			for range pools.Totals() {
				seen++
				break
			}
			Expect(seen).To(Equal(1))
		})
	})
})
