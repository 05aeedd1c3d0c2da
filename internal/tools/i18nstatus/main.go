// Package main reports translation coverage for the embedded locale
// catalogs. Run with go run ./internal/tools/i18nstatus; -json switches
// the output to a machine-readable report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	i18ncatalog "github.com/louisbranch/mist-engine/internal/platform/i18n/catalog"
)

type localeReport struct {
	Locale      string   `json:"locale"`
	BaseKeys    int      `json:"base_keys"`
	Translated  int      `json:"translated"`
	MissingKeys []string `json:"missing_keys,omitempty"`
	ExtraKeys   []string `json:"extra_keys,omitempty"`
}

func main() {
	var asJSON bool
	flag.BoolVar(&asJSON, "json", false, "emit a JSON report instead of text")
	flag.Parse()

	bundle, err := i18ncatalog.LoadEmbedded()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load locale catalogs: %v\n", err)
		os.Exit(1)
	}

	reports := buildReports(bundle, i18ncatalog.BaseLocale)
	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(reports); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("base locale: %s\n", i18ncatalog.BaseLocale)
	for _, report := range reports {
		fmt.Printf("%-8s %d/%d keys translated\n", report.Locale, report.Translated, report.BaseKeys)
		for _, key := range report.MissingKeys {
			fmt.Printf("  missing %s\n", key)
		}
		for _, key := range report.ExtraKeys {
			fmt.Printf("  extra   %s\n", key)
		}
	}
}

func buildReports(bundle *i18ncatalog.Bundle, baseLocale string) []localeReport {
	base := bundle.LocaleMessages(baseLocale)

	var reports []localeReport
	for _, locale := range bundle.Locales() {
		messages := bundle.LocaleMessages(locale)
		missing := diffKeys(base, messages)
		reports = append(reports, localeReport{
			Locale:      locale,
			BaseKeys:    len(base),
			Translated:  len(base) - len(missing),
			MissingKeys: missing,
			ExtraKeys:   diffKeys(messages, base),
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Locale < reports[j].Locale })
	return reports
}

// diffKeys returns the keys of a that b lacks, sorted.
func diffKeys(a, b map[string]string) []string {
	var out []string
	for key := range a {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
