package extraction

import (
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func totalsOf(lines ...string) []Candidate {
	return slices.Collect(Classify(ExtractCandidates(lines)).Totals())
}

func unitPricesOf(lines ...string) []Candidate {
	return slices.Collect(Classify(ExtractCandidates(lines)).UnitPrices())
}

var _ = Describe("Fallback", func() {
	var (
		lines   []string
		amounts AmountPolicy
		prices  UnitPricePolicy
		expense *ExtractedExpense
	)

	BeforeEach(func() {
		amounts = RepeatedAmount{}
		prices = MarkedUnitPrice{Band: DefaultPriceBand()}
	})

	JustBeforeEach(func() {
		expense = Fallback(Classify(ExtractCandidates(lines)), amounts, prices)
	})

	When("running on a receipt that also has a consistent triple", func() {
		BeforeEach(func() {
			lines = fuelReceipt
		})

		It("should choose the total printed twice", func() {
			Expect(expense).NotTo(BeNil())
			Expect(expense.Amount).To(BeDecimal("20.36"))
		})

		It("should choose the only currency-marked unit price", func() {
			Expect(expense.UnitPrice.Valid).To(BeTrue())
			Expect(expense.UnitPrice.Decimal).To(BeDecimal("4.759"))
		})

		It("should leave quantity unset", func() {
			Expect(expense.Quantity.Valid).To(BeFalse())
		})
	})

	When("there are no totals", func() {
		BeforeEach(func() {
			lines = []string{"4.204", "$4.759"}
		})

		It("should return nil", func() {
			Expect(expense).To(BeNil())
		})
	})

	When("there are no unit prices", func() {
		BeforeEach(func() {
			lines = []string{"TOTAL $35.00"}
		})

		It("should still report the amount", func() {
			Expect(expense.Amount).To(BeDecimal("35.00"))
			Expect(expense.UnitPrice.Valid).To(BeFalse())
		})
	})
})

var _ = Describe("RepeatedAmount", func() {
	var (
		policy   RepeatedAmount
		totals   []Candidate
		picked   Candidate
		pickedOK bool
	)

	JustBeforeEach(func() {
		picked, pickedOK = policy.SelectAmount(totals)
	})

	When("no value repeats", func() {
		BeforeEach(func() {
			policy = RepeatedAmount{}
			totals = totalsOf("$12.00", "$40.00", "$3.50")
		})

		It("should pick the first total in scan order", func() {
			Expect(pickedOK).To(BeTrue())
			Expect(picked.Value).To(BeDecimal("12.00"))
		})
	})

	When("several values repeat", func() {
		BeforeEach(func() {
			policy = RepeatedAmount{}
			totals = totalsOf("$5.00", "$40.00", "$5.00", "$40.00")
		})

		It("should pick the first repeated value", func() {
			Expect(picked.Value).To(BeDecimal("5.00"))
		})

		When("the largest is preferred", func() {
			BeforeEach(func() {
				policy = RepeatedAmount{PreferLargest: true}
			})

			It("should pick the largest repeated value", func() {
				Expect(picked.Value).To(BeDecimal("40.00"))
			})
		})
	})

	When("a large value does not repeat", func() {
		BeforeEach(func() {
			policy = RepeatedAmount{PreferLargest: true}
			totals = totalsOf("$99.00", "$5.00", "$5.00")
		})

		It("should still prefer the repeated value", func() {
			Expect(picked.Value).To(BeDecimal("5.00"))
		})
	})

	When("there are no totals", func() {
		BeforeEach(func() {
			policy = RepeatedAmount{}
			totals = nil
		})

		It("should report nothing selected", func() {
			Expect(pickedOK).To(BeFalse())
		})
	})
})

var _ = Describe("LargestAmount", func() {
	It("should ignore repetition", func() {
		picked, ok := LargestAmount{}.SelectAmount(totalsOf("$5.00", "$5.00", "$7.25"))
		Expect(ok).To(BeTrue())
		Expect(picked.Value).To(BeDecimal("7.25"))
	})

	It("should report nothing selected for an empty pool", func() {
		_, ok := LargestAmount{}.SelectAmount(nil)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("MarkedUnitPrice", func() {
	var (
		policy     MarkedUnitPrice
		unitPrices []Candidate
		picked     Candidate
		pickedOK   bool
	)

	BeforeEach(func() {
		policy = MarkedUnitPrice{Band: DefaultPriceBand()}
	})

	JustBeforeEach(func() {
		picked, pickedOK = policy.SelectUnitPrice(unitPrices)
	})

	When("exactly one candidate is marked", func() {
		BeforeEach(func() {
			unitPrices = unitPricesOf("3.459", "$12.999", "2.001")
		})

		It("should pick it even outside the band", func() {
			Expect(pickedOK).To(BeTrue())
			Expect(picked.Value).To(BeDecimal("12.999"))
		})
	})

	When("several candidates are marked", func() {
		BeforeEach(func() {
			unitPrices = unitPricesOf("$0.359", "5.499", "$3.459", "$9.100")
		})

		It("should pick the marked one closest to the band midpoint", func() {
			Expect(picked.Value).To(BeDecimal("3.459"))
		})
	})

	When("no candidate is marked", func() {
		BeforeEach(func() {
			unitPrices = unitPricesOf("0.359", "12.500", "4.899")
		})

		It("should pick the one inside the band", func() {
			Expect(picked.Value).To(BeDecimal("4.899"))
		})
	})

	When("every candidate is outside the band", func() {
		BeforeEach(func() {
			unitPrices = unitPricesOf("12.999", "0.999")
		})

		It("should pick the one nearest the band", func() {
			Expect(picked.Value).To(BeDecimal("0.999"))
		})
	})

	When("the band is unset", func() {
		BeforeEach(func() {
			policy = MarkedUnitPrice{}
			unitPrices = unitPricesOf("12.999", "0.999")
		})

		It("should keep scan order", func() {
			Expect(picked.Value).To(BeDecimal("12.999"))
		})
	})

	When("the pool is empty", func() {
		BeforeEach(func() {
			unitPrices = nil
		})

		It("should report nothing selected", func() {
			Expect(pickedOK).To(BeFalse())
		})
	})
})

var _ = Describe("PriceBand", func() {
	It("should include its edges", func() {
		band := DefaultPriceBand()
		Expect(band.Contains(decimal.RequireFromString("1.000"))).To(BeTrue())
		Expect(band.Contains(decimal.RequireFromString("9.999"))).To(BeTrue())
		Expect(band.Contains(decimal.RequireFromString("10.000"))).To(BeFalse())
	})

	It("should format with three decimals", func() {
		Expect(DefaultPriceBand().String()).To(Equal("1.000-9.999"))
	})
})

var _ = DescribeTable("AmountPolicyByName",
	func(name string, expected AmountPolicy) {
		policy, err := AmountPolicyByName(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(policy).To(Equal(expected))
	},
	Entry("default", "", RepeatedAmount{}),
	Entry("repeated-first", "repeated-first", RepeatedAmount{}),
	Entry("repeated-largest", "repeated-largest", RepeatedAmount{PreferLargest: true}),
	Entry("largest", "largest", LargestAmount{}),
)

var _ = It("rejects unknown amount policies", func() {
	_, err := AmountPolicyByName("smallest")
	Expect(err).To(MatchError(ContainSubstring("smallest")))
})
