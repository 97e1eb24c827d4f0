package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/apcore/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func defaultTol() domain.MatchingTolerance {
	return domain.DefaultMatchingTolerance()
}

func TestHeaderCheckWithinAbsoluteTolerance(t *testing.T) {
	assert.True(t, headerCheck(dec("1040"), dec("1000"), defaultTol()))
}

func TestHeaderCheckWithinPercentTolerance(t *testing.T) {
	tol := defaultTol()
	tol.AmountToleranceAbs = 0
	assert.True(t, headerCheck(dec("10200"), dec("10000"), tol))
}

func TestHeaderCheckOutOfTolerance(t *testing.T) {
	tol := defaultTol()
	tol.AmountToleranceAbs = 0
	assert.False(t, headerCheck(dec("11000"), dec("10000"), tol))
}

func TestWordOverlapSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, wordOverlapSimilarity("Widget Assembly", "widget assembly"))
	assert.Equal(t, 0.5, wordOverlapSimilarity("widget assembly", "widget"))
	assert.Equal(t, 0.0, wordOverlapSimilarity("widget", "gadget"))
}

func TestPairByLineOrDescriptionPrefersExactLineNumber(t *testing.T) {
	poLines := []domain.POLineItem{
		{ID: uuid.New(), LineNumber: 1, Description: "blue widgets"},
		{ID: uuid.New(), LineNumber: 2, Description: "red widgets"},
	}
	got := pairByLineOrDescription(2, "completely unrelated text", poLines)
	assert.Equal(t, poLines[1].ID, got.ID)
}

func TestPairByLineOrDescriptionFallsBackToSimilarity(t *testing.T) {
	poLines := []domain.POLineItem{
		{ID: uuid.New(), LineNumber: 9, Description: "stainless steel bolts"},
	}
	got := pairByLineOrDescription(1, "steel bolts, stainless", poLines)
	assert.NotNil(t, got)
	assert.Equal(t, poLines[0].ID, got.ID)
}

func TestPairByLineOrDescriptionReturnsNilBelowFloor(t *testing.T) {
	poLines := []domain.POLineItem{
		{ID: uuid.New(), LineNumber: 9, Description: "stainless steel bolts"},
	}
	got := pairByLineOrDescription(1, "unrelated consulting services", poLines)
	assert.Nil(t, got)
}

func TestTwoWayLineCheckMatched(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New(), Quantity: dec("10"), UnitPrice: dec("5.00")}
	line := domain.InvoiceLineItem{Quantity: dec("10"), UnitPrice: dec("5.00")}
	out := twoWayLineCheck(line, po, defaultTol())
	assert.Equal(t, domain.LineMatched, out.status)
	assert.Empty(t, out.exceptions)
}

func TestTwoWayLineCheckPriceVariance(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New(), Quantity: dec("10"), UnitPrice: dec("5.00")}
	line := domain.InvoiceLineItem{Quantity: dec("10"), UnitPrice: dec("8.00")}
	out := twoWayLineCheck(line, po, defaultTol())
	assert.Equal(t, domain.LinePriceVariance, out.status)
	assert.Equal(t, []domain.ExceptionCode{domain.ExcPriceVariance}, out.exceptions)
}

func TestTwoWayLineCheckQtyVariance(t *testing.T) {
	tol := defaultTol()
	po := &domain.POLineItem{ID: uuid.New(), Quantity: dec("10"), UnitPrice: dec("5.00")}
	line := domain.InvoiceLineItem{Quantity: dec("12"), UnitPrice: dec("5.00")}
	out := twoWayLineCheck(line, po, tol)
	assert.Equal(t, domain.LineQtyVariance, out.status)
	assert.Equal(t, []domain.ExceptionCode{domain.ExcQtyVariance}, out.exceptions)
}

func TestTwoWayLineCheckBothVariance(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New(), Quantity: dec("10"), UnitPrice: dec("5.00")}
	line := domain.InvoiceLineItem{Quantity: dec("12"), UnitPrice: dec("8.00")}
	out := twoWayLineCheck(line, po, defaultTol())
	assert.Equal(t, domain.LineQtyVariance, out.status)
	assert.ElementsMatch(t, []domain.ExceptionCode{domain.ExcQtyVariance, domain.ExcPriceVariance}, out.exceptions)
}

func TestTwoWayLineCheckUnmatchedWithoutPOLine(t *testing.T) {
	out := twoWayLineCheck(domain.InvoiceLineItem{}, nil, defaultTol())
	assert.Equal(t, domain.LineUnmatched, out.status)
	assert.Equal(t, []domain.ExceptionCode{domain.ExcMissingPO}, out.exceptions)
}

func TestThreeWayLineCheckMatchedWithinTolerance(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New()}
	line := domain.InvoiceLineItem{Quantity: dec("10")}
	out := threeWayLineCheck(line, po, dec("10"), true, defaultTol())
	assert.Equal(t, domain.LineMatched, out.status)
}

func TestThreeWayLineCheckOverReceipt(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New()}
	line := domain.InvoiceLineItem{Quantity: dec("15")}
	out := threeWayLineCheck(line, po, dec("10"), true, defaultTol())
	assert.Equal(t, domain.LineQtyVariance, out.status)
	assert.Equal(t, []domain.ExceptionCode{domain.ExcQtyOverReceipt}, out.exceptions)
}

func TestThreeWayLineCheckNoGoodsReceipt(t *testing.T) {
	po := &domain.POLineItem{ID: uuid.New()}
	out := threeWayLineCheck(domain.InvoiceLineItem{}, po, decimal.Zero, false, defaultTol())
	assert.Equal(t, domain.LineUnmatched, out.status)
	assert.Equal(t, []domain.ExceptionCode{domain.ExcGRNNotFound}, out.exceptions)
}

func TestAggregateReceivedQtySumsByLinkedLineAndFallsBackToDescription(t *testing.T) {
	poLineA := domain.POLineItem{ID: uuid.New(), Description: "blue widgets"}
	poLineB := domain.POLineItem{ID: uuid.New(), Description: "red widgets"}
	poLines := []domain.POLineItem{poLineA, poLineB}

	linkedID := poLineA.ID
	grLines := []domain.GRLineItem{
		{POLineItemID: &linkedID, Quantity: dec("4")},
		{POLineItemID: &linkedID, Quantity: dec("3")},
		{Description: "red widgets", Quantity: dec("2")},
	}

	received := aggregateReceivedQty(poLines, grLines)
	assert.True(t, dec("7").Equal(received[poLineA.ID]))
	assert.True(t, dec("2").Equal(received[poLineB.ID]))
}

func TestOverallStatusHeaderFailureIsException(t *testing.T) {
	assert.Equal(t, domain.MatchStatusException, overallStatus(false, []lineOutcome{{status: domain.LineMatched}}))
}

func TestOverallStatusAllMatchedIsMatched(t *testing.T) {
	outcomes := []lineOutcome{{status: domain.LineMatched}, {status: domain.LineMatched}}
	assert.Equal(t, domain.MatchStatusMatched, overallStatus(true, outcomes))
}

func TestOverallStatusZeroMatchedIsException(t *testing.T) {
	outcomes := []lineOutcome{{status: domain.LineUnmatched}, {status: domain.LineQtyVariance}}
	assert.Equal(t, domain.MatchStatusException, overallStatus(true, outcomes))
}

func TestOverallStatusMixedIsPartial(t *testing.T) {
	outcomes := []lineOutcome{{status: domain.LineMatched}, {status: domain.LinePriceVariance}}
	assert.Equal(t, domain.MatchStatusPartial, overallStatus(true, outcomes))
}
