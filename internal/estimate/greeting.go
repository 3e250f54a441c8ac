package estimate

import (
	"strings"

	"github.com/samber/lo"
)

// Greeting picks the salutation for a lead from their first name.
//
// A first name from the informal list gets the familiar form, a name with the
// masculine nominative ending is put in the vocative, anything else gets the
// neutral formal address.
func (g GreetingPhrases) Greeting(fullName string) string {
	first := firstName(fullName)
	switch {
	case first == "":
		return strings.TrimSpace(fill(g.Formal, "{name}", ""))
	case lo.Contains(g.InformalNames, first) && g.Informal != "":
		return fill(g.Informal, "{name}", first)
	case g.VocativeSuffix != "" && g.Vocative != "" && strings.HasSuffix(first, g.VocativeSuffix):
		stem := strings.TrimSuffix(first, g.VocativeSuffix)
		return fill(g.Vocative, "{name}", stem+g.VocativeReplacement)
	}
	return fill(g.Formal, "{name}", first)
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func fill(s string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(s)
}
