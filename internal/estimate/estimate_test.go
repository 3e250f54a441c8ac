package estimate

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/pricing"
)

type fakeGenerator struct {
	enabled bool
	text    string
	err     error
	block   bool

	calls      int32
	lastSystem string
	lastPrompt string
}

func (f *fakeGenerator) Enabled() bool { return f.enabled }

func (f *fakeGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastSystem, f.lastPrompt = system, prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func testOptions() Options {
	return Options{
		Subject:        "Η εκτίμησή σας",
		ConsultantName: "Νίκος",
		Phone:          "2100000000",
		Hours:          "Δευτέρα - Παρασκευή",
		WebsiteURL:     "example.gr",
		Timeout:        50 * time.Millisecond,
	}
}

func newBuilder(t *testing.T, gen Generator, seed int64) *Builder {
	t.Helper()
	b, err := NewBuilder(gen, nil, testOptions(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return b
}

func pricedSubmission() *models.Submission {
	notes := "Θα ήθελα φυσικό αποτέλεσμα"
	items := []pricing.LineItem{
		{Name: "Surgeon fee", PriceFrom: decimal.NewFromInt(1000)},
		{Name: "Anaesthesia", PriceFrom: decimal.NewFromInt(200), PriceTo: decimal.NewNullDecimal(decimal.NewFromInt(250))},
		{Name: "Implants", PriceFrom: decimal.NewFromInt(800)},
	}
	snap := pricing.SnapshotOf(items)
	return &models.Submission{
		ID:             7,
		Name:           "Μαρία Παπαδάκη",
		Email:          "maria@example.com",
		Procedure:      "Rhinoplasty",
		Category:       "Face",
		Notes:          &notes,
		PricingDetails: models.PricingDetails(snap.Items),
		TotalPrice:     models.TotalPrice{Total: snap.Total},
	}
}

func TestGreeting(t *testing.T) {
	phrases, err := DefaultPhrases()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"informal list", "Μαρία Παπαδάκη", "Γεια σου Μαρία"},
		{"informal without accent", "Κατερινα", "Γεια σου Κατερινα"},
		{"masculine vocative", "Γιώργος Νικολάου", "Γεια σας κύριε Γιώργε"},
		{"formal default", "Δημήτρης", "Γεια σας κύριε/κυρία Δημήτρης"},
		{"latin name", "  John Smith ", "Γεια σας κύριε/κυρία John"},
		{"empty", "", "Γεια σας κύριε/κυρία"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, phrases.Greeting.Greeting(tt.in))
		})
	}
}

func TestBuild_FallbackOnGeneratorError(t *testing.T) {
	gen := &fakeGenerator{enabled: true, err: errors.New("upstream 503")}
	b := newBuilder(t, gen, 1)

	content, err := b.Build(context.Background(), pricedSubmission())
	require.NoError(t, err)

	assert.False(t, content.Generated)
	assert.EqualValues(t, 1, gen.calls)
	assert.NotEmpty(t, content.Text)
	assert.Contains(t, content.Text, "Rhinoplasty")
	assert.Contains(t, content.Text, "€2000.00 - €2050.00")
	assert.Contains(t, content.Text, "Anaesthesia: €200.00 - €250.00")
	assert.Contains(t, content.Text, "Surgeon fee: €1000.00")
	assert.True(t, strings.HasPrefix(content.Text, "Γεια σου Μαρία\n\n"))
	assert.Contains(t, content.Text, "2100000000")
	assert.NotContains(t, content.Text, "Θα ήθελα φυσικό αποτέλεσμα")
	assert.True(t, strings.HasSuffix(content.Text, "Με εκτίμηση,\nΝίκος\nexample.gr"))

	assert.Equal(t, "Η εκτίμησή σας", content.Subject)
	assert.Contains(t, content.HTML, "Rhinoplasty")
	assert.Contains(t, content.HTML, "€2000.00 - €2050.00")
}

func TestBuild_FallbackOnTimeout(t *testing.T) {
	gen := &fakeGenerator{enabled: true, block: true}
	b := newBuilder(t, gen, 1)

	start := time.Now()
	content, err := b.Build(context.Background(), pricedSubmission())
	require.NoError(t, err)

	assert.False(t, content.Generated)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, content.Text, "Rhinoplasty")
}

func TestBuild_FallbackOnBlankCompletion(t *testing.T) {
	b := newBuilder(t, &fakeGenerator{enabled: true, text: "   \n"}, 1)

	content, err := b.Build(context.Background(), pricedSubmission())
	require.NoError(t, err)
	assert.False(t, content.Generated)
	assert.Contains(t, content.Text, "Rhinoplasty")
}

func TestBuild_DisabledGeneratorIsNotCalled(t *testing.T) {
	gen := &fakeGenerator{enabled: false, text: "unused"}
	b := newBuilder(t, gen, 1)

	content, err := b.Build(context.Background(), pricedSubmission())
	require.NoError(t, err)
	assert.False(t, content.Generated)
	assert.Zero(t, gen.calls)
}

func TestBuild_Generated(t *testing.T) {
	gen := &fakeGenerator{enabled: true, text: "  Γεια σου Μαρία\n\nΟρίστε η εκτίμηση.  "}
	b := newBuilder(t, gen, 1)

	content, err := b.Build(context.Background(), pricedSubmission())
	require.NoError(t, err)

	assert.True(t, content.Generated)
	assert.Equal(t, "Γεια σου Μαρία\n\nΟρίστε η εκτίμηση.", content.Text)
	assert.Contains(t, content.HTML, "Ορίστε η εκτίμηση.")

	assert.Equal(t, systemPrompt, gen.lastSystem)
	assert.Contains(t, gen.lastPrompt, "'Γεια σου Μαρία'")
	assert.Contains(t, gen.lastPrompt, "Rhinoplasty")
	assert.Contains(t, gen.lastPrompt, "Category: Face")
	assert.Contains(t, gen.lastPrompt, "Implants: €800.00")
	assert.Contains(t, gen.lastPrompt, "Total cost: €2000.00 - €2050.00")
	assert.Contains(t, gen.lastPrompt, "Θα ήθελα φυσικό αποτέλεσμα")
	assert.Contains(t, gen.lastPrompt, "2100000000")
}

func TestFallback_DeterministicWithSeed(t *testing.T) {
	sub := pricedSubmission()

	a := newBuilder(t, nil, 42).Fallback(sub)
	b := newBuilder(t, nil, 42).Fallback(sub)
	assert.Equal(t, a, b)

	seen := map[string]struct{}{}
	for seed := int64(0); seed < 50; seed++ {
		seen[newBuilder(t, nil, seed).Fallback(sub)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestFallback_UnpricedSubmission(t *testing.T) {
	sub := &models.Submission{
		Name:       "Γιώργος",
		Procedure:  "Blepharoplasty",
		TotalPrice: models.TotalPrice{Total: pricing.Empty()},
	}
	text := newBuilder(t, nil, 3).Fallback(sub)

	assert.Contains(t, text, "Γεια σας κύριε Γιώργε")
	assert.Contains(t, text, "Blepharoplasty")
	assert.Contains(t, text, "Συνολικό κόστος: Κατόπιν επικοινωνίας")
	assert.NotContains(t, text, "€0.00")
	assert.NotContains(t, text, "Αναλυτικά τα κόστη")
}

func TestBuild_EscapesHTML(t *testing.T) {
	sub := pricedSubmission()
	sub.PricingDetails[0].Name = "<script>x</script>"

	content, err := newBuilder(t, nil, 1).Build(context.Background(), sub)
	require.NoError(t, err)
	assert.NotContains(t, content.HTML, "<script>x</script>")
	assert.Contains(t, content.HTML, "&lt;script&gt;x&lt;/script&gt;")
}

func TestParsePhrases_RejectsEmptyPool(t *testing.T) {
	_, err := ParsePhrases([]byte("greeting:\n  formal: \"Hi {name}\"\nintroductions: [a]\ndisclaimers: [b]\nctas: []\nfinals: [d]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ctas")

	_, err = ParsePhrases([]byte("introductions: ["))
	require.Error(t, err)
}

func TestBuild_NilSubmission(t *testing.T) {
	_, err := newBuilder(t, nil, 1).Build(context.Background(), nil)
	require.Error(t, err)
}
