package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func attach(name, from, to string) TypeAttachment {
	a := TypeAttachment{Name: name, PriceFrom: nd(from)}
	if to != "" {
		a.PriceTo = nd(to)
	}
	return a
}

func TestService_FlatTotal(t *testing.T) {
	svc := Service{
		PricingMode: PricingModeFlat,
		PricingTypes: []TypeAttachment{
			attach("A", "1000", "1000"),
			attach("B", "200", "250"),
		},
		Materials: []Material{{Name: "Implant", Price: decimal.RequireFromString("800")}},
	}

	total := svc.Total()
	require.True(t, total.Priced)
	assert.True(t, total.Min.Equal(decimal.RequireFromString("2000")))
	assert.True(t, total.Max.Equal(decimal.RequireFromString("2050")))
	assert.Equal(t, "€2000.00 - €2050.00", total.Display())
}

func TestService_NoPricingIsContactForPrice(t *testing.T) {
	svc := Service{PricingMode: PricingModeFlat}
	total := svc.Total()
	assert.False(t, total.Priced)
	assert.Equal(t, pricing.NoPriceLabel, total.Display())

	svc.PricingMode = PricingModeVariation
	assert.False(t, svc.Total().Priced)
}

func TestService_VariationModeSpansVariations(t *testing.T) {
	svc := Service{
		PricingMode: PricingModeVariation,
		// Own attachments are ignored in variation mode.
		PricingTypes: []TypeAttachment{attach("Stale", "9999", "")},
		Variations: []ServiceVariation{
			{ID: 1, Name: "Local", IsActive: true, PricingTypes: []TypeAttachment{attach("Doctor Fee", "1000", "1200")}},
			{ID: 2, Name: "Sedation", IsActive: true, PricingTypes: []TypeAttachment{
				attach("Doctor Fee", "1500", "1500"),
				attach("Anesthesiologist", "300", "400"),
			}},
			{ID: 3, Name: "Retired", IsActive: false, PricingTypes: []TypeAttachment{attach("Doctor Fee", "50", "")}},
		},
	}

	total := svc.Total()
	require.True(t, total.Priced)
	assert.Equal(t, "1000", total.Min.String())
	assert.Equal(t, "1900", total.Max.String())

	_, ok := svc.Variation(3)
	assert.False(t, ok, "inactive variations are not selectable")
}

func TestService_RequiredFeesAdded(t *testing.T) {
	fee := ServiceFee{IsRequired: true, Pricing: Pricing{Name: "Clinic", Type: pricing.FeeFlat, FlatAmount: nd("100"), IsActive: true}}
	optional := ServiceFee{IsRequired: false, Pricing: Pricing{Name: "Photos", Type: pricing.FeeFlat, FlatAmount: nd("50"), IsActive: true}}
	pct := ServiceFee{IsRequired: true, Pricing: Pricing{Name: "VAT", Type: pricing.FeePercentage, PercentageRate: nd("24"), IsActive: true}}

	flat := Service{
		PricingMode:  PricingModeFlat,
		PricingTypes: []TypeAttachment{attach("A", "1000", "")},
		Fees:         []ServiceFee{fee, optional, pct},
	}
	total := flat.Total()
	assert.Equal(t, "1100", total.Min.String())
	assert.Equal(t, "1100", total.Max.String())

	variation := Service{
		PricingMode: PricingModeVariation,
		Fees:        []ServiceFee{fee},
		Variations: []ServiceVariation{
			{ID: 1, IsActive: true, PricingTypes: []TypeAttachment{attach("A", "1000", "")}},
			{ID: 2, IsActive: true},
		},
	}
	total = variation.Total()
	assert.Equal(t, "1100", total.Min.String())
	assert.Equal(t, "1100", total.Max.String())
}

func TestService_InVariationModeFallsBackToChildren(t *testing.T) {
	svc := Service{Variations: []ServiceVariation{{ID: 1, IsActive: true}}}
	assert.True(t, svc.InVariationMode())

	svc.PricingMode = PricingModeFlat
	assert.False(t, svc.InVariationMode())
}

func TestService_LineItems(t *testing.T) {
	v := ServiceVariation{ID: 7, IsActive: true, PricingTypes: []TypeAttachment{
		attach("Doctor Fee", "1500", "1800"),
		{Name: "Unpriced"},
	}}
	svc := Service{
		PricingMode: PricingModeVariation,
		Variations:  []ServiceVariation{v},
		Fees: []ServiceFee{{IsRequired: true, Pricing: Pricing{
			Name: "Hospital", Type: pricing.FeeRange, MinAmount: nd("200"), MaxAmount: nd("300"), IsActive: true,
		}}},
	}

	items := svc.LineItems(&v)
	require.Len(t, items, 2)
	assert.Equal(t, "Doctor Fee", items[0].Name)
	assert.Equal(t, "€1500.00 - €1800.00", items[0].Display())
	assert.Equal(t, "Hospital", items[1].Name)

	snap := pricing.SnapshotOf(items)
	assert.True(t, snap.Total.Equal(v.Total().Plus(svc.feeTotal())))
}

func TestSubmission_JSONBColumns(t *testing.T) {
	details := PricingDetails{{Name: "A", PriceFrom: decimal.RequireFromString("100")}}
	raw, err := details.Value()
	require.NoError(t, err)

	var scanned PricingDetails
	require.NoError(t, scanned.Scan(raw))
	require.Len(t, scanned, 1)
	assert.Equal(t, "A", scanned[0].Name)

	var total TotalPrice
	require.NoError(t, total.Scan(nil))
	assert.False(t, total.Priced)

	require.NoError(t, total.Scan([]byte(`{"min":100,"max":150}`)))
	assert.Equal(t, "€100.00 - €150.00", total.Display())
}

func TestSubmission_EmailState(t *testing.T) {
	now := mustTime(t, "2026-01-01T10:00:00Z")
	cases := []struct {
		name string
		sub  Submission
		want EmailState
	}{
		{"no email", Submission{}, EmailUnscheduled},
		{"scheduled", Submission{Email: "a@b.gr", EmailScheduledFor: &now}, EmailScheduled},
		{"sent", Submission{Email: "a@b.gr", EmailScheduledFor: &now, EmailSentAt: &now}, EmailSent},
		{"failed", Submission{Email: "a@b.gr", EmailScheduledFor: &now, EmailFailedAt: &now}, EmailFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sub.EmailState())
		})
	}

	body, err := json.Marshal(Submission{Status: SubmissionPending})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"emailState":"unscheduled"`)
	assert.Contains(t, string(body), `"totalPrice":{"min":null,"max":null,"display":"Contact for price"}`)
}

func TestPricing_ClearUnusedAmounts(t *testing.T) {
	p := Pricing{Type: pricing.FeeRange, FlatAmount: nd("1"), MinAmount: nd("2"), MaxAmount: nd("3"), PercentageRate: nd("4")}
	p.ClearUnusedAmounts()
	assert.False(t, p.FlatAmount.Valid)
	assert.False(t, p.PercentageRate.Valid)
	assert.True(t, p.MinAmount.Valid)
	assert.True(t, p.MaxAmount.Valid)
}
