// Package estimate turns a submission's pricing snapshot into the body of the
// estimate email. Text generation is optional; when it is unavailable, slow or
// fails, a templated body is assembled from the phrase pools instead.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/models"
)

const systemPrompt = "You are a Greek medical consultant who helps clients find the right plastic surgeon. " +
	"Write a short, personal email in Greek about price estimates collected from recommended surgeons. " +
	"Keep the tone warm and conversational, avoid marketing language, and never imply that you perform the surgery yourself."

// Generator produces free text from a prompt.
type Generator interface {
	Enabled() bool
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options are the sender-side parameters of the email.
type Options struct {
	Subject        string
	ConsultantName string
	Phone          string
	Hours          string
	WebsiteURL     string
	// Timeout bounds a single text generation call.
	Timeout time.Duration
}

// Content is a ready-to-send estimate email.
type Content struct {
	Subject   string
	Text      string
	HTML      string
	Generated bool
}

// Builder assembles estimate emails. It is safe for concurrent use.
type Builder struct {
	gen     Generator
	phrases *Phrases
	opts    Options

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBuilder creates a Builder. gen may be nil, in which case every email uses
// the templated body. A nil phrases uses the embedded pools and a nil rnd is
// seeded from the clock.
func NewBuilder(gen Generator, phrases *Phrases, opts Options, rnd *rand.Rand) (*Builder, error) {
	if phrases == nil {
		p, err := DefaultPhrases()
		if err != nil {
			return nil, err
		}
		phrases = p
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	return &Builder{gen: gen, phrases: phrases, opts: opts, rnd: rnd}, nil
}

// Build produces the email for sub. Text generation errors never surface;
// only a rendering failure is returned.
func (b *Builder) Build(ctx context.Context, sub *models.Submission) (*Content, error) {
	if sub == nil {
		return nil, errors.New("estimate: nil submission")
	}

	body, generated := b.generate(ctx, sub)
	if !generated {
		body = b.Fallback(sub)
	}

	html, err := renderHTML(htmlData{
		Subject:    b.opts.Subject,
		Paragraphs: paragraphs(body),
		Procedure:  sub.Procedure,
		Variant:    sub.Variant,
		Items:      listing(sub),
		TotalLabel: b.phrases.Labels.Total,
		Total:      b.totalLine(sub),
		Phone:      b.opts.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("render estimate html: %w", err)
	}

	return &Content{
		Subject:   b.opts.Subject,
		Text:      body,
		HTML:      html,
		Generated: generated,
	}, nil
}

func (b *Builder) generate(ctx context.Context, sub *models.Submission) (string, bool) {
	if b.gen == nil || !b.gen.Enabled() {
		return "", false
	}

	genCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := b.gen.Complete(genCtx, systemPrompt, b.Prompt(sub))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("blank completion")
	}
	if err != nil {
		log.Warn().
			Err(err).
			Int("submission_id", sub.ID).
			Dur("elapsed", time.Since(start)).
			Msg("Text generation failed, using templated estimate")
		return "", false
	}
	return strings.TrimSpace(text), true
}

// Prompt is the user message sent to the text generator.
func (b *Builder) Prompt(sub *models.Submission) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a personal email that starts with '%s' about the price estimate for %s.\n\n",
		b.phrases.Greeting.Greeting(sub.Name), sub.Procedure)

	if sub.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", sub.Category)
	}
	if sub.Variant != nil && *sub.Variant != "" {
		fmt.Fprintf(&sb, "Option: %s\n", *sub.Variant)
	}
	if items := listing(sub); len(items) > 0 {
		sb.WriteString("Pricing details:\n")
		for _, it := range items {
			fmt.Fprintf(&sb, "%s: %s\n", it.Name, it.Price)
		}
	}
	fmt.Fprintf(&sb, "Total cost: %s\n", b.totalLine(sub))
	if sub.Notes != nil && strings.TrimSpace(*sub.Notes) != "" {
		fmt.Fprintf(&sb, "Client notes (use them to personalise the email, do not quote them): %s\n", strings.TrimSpace(*sub.Notes))
	}

	sb.WriteString("\nInclude:\n")
	sb.WriteString("- A warm greeting\n")
	sb.WriteString("- That these are indicative prices collected from recommended surgeons\n")
	if b.opts.Phone != "" {
		fmt.Fprintf(&sb, "- An invitation to call %s to discuss the surgeon options\n", b.opts.Phone)
	}
	if b.opts.ConsultantName != "" {
		fmt.Fprintf(&sb, "- A signature from %s, medical consultant\n", b.opts.ConsultantName)
	}
	sb.WriteString("- A conversational, human tone\n")
	return sb.String()
}

// Fallback assembles the templated body. With the same random source state
// it always yields the same text.
func (b *Builder) Fallback(sub *models.Submission) string {
	p := b.phrases
	vars := []string{
		"{procedure}", sub.Procedure,
		"{phone}", b.opts.Phone,
		"{hours}", b.opts.Hours,
	}

	var sb strings.Builder
	sb.WriteString(p.Greeting.Greeting(sub.Name))
	sb.WriteString("\n\n")
	sb.WriteString(fill(b.pick(p.Introductions), vars...))
	sb.WriteString("\n\n")

	if sub.Category != "" {
		fmt.Fprintf(&sb, "%s: %s\n", p.Labels.Category, sub.Category)
	}
	if items := listing(sub); len(items) > 0 {
		fmt.Fprintf(&sb, "%s:\n", p.Labels.Details)
		for _, it := range items {
			fmt.Fprintf(&sb, "%s: %s\n", it.Name, it.Price)
		}
	}
	fmt.Fprintf(&sb, "%s: %s\n", p.Labels.Total, b.totalLine(sub))

	sb.WriteString("\n")
	sb.WriteString(fill(b.pick(p.Disclaimers), vars...))
	sb.WriteString("\n\n")
	sb.WriteString(fill(b.pick(p.CTAs), vars...))
	sb.WriteString("\n\n")
	sb.WriteString(fill(b.pick(p.Finals), vars...))
	sb.WriteString("\n\n")

	sb.WriteString(p.Labels.Signoff)
	for _, line := range []string{b.opts.ConsultantName, b.opts.WebsiteURL} {
		if line != "" {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func (b *Builder) pick(pool []string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pool[b.rnd.Intn(len(pool))]
}

func (b *Builder) totalLine(sub *models.Submission) string {
	if !sub.TotalPrice.Priced {
		return b.phrases.Labels.NoPrice
	}
	return sub.TotalPrice.Display()
}

type priceLine struct {
	Name  string
	Price string
}

func listing(sub *models.Submission) []priceLine {
	out := make([]priceLine, 0, len(sub.PricingDetails))
	for _, item := range sub.PricingDetails {
		out = append(out, priceLine{Name: item.Name, Price: item.Display()})
	}
	return out
}

// paragraphs splits a plain text body on blank lines, keeping line breaks
// inside each paragraph.
func paragraphs(body string) [][]string {
	var out [][]string
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, strings.Split(block, "\n"))
	}
	return out
}
