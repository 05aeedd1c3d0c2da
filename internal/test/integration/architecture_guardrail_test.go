//go:build integration
// +build integration

package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestDomainPackagesDoNotImportStorage keeps the calculation and domain
// packages storage-free: persistence flows through the store interfaces
// held by the service layer, never directly from domain code.
func TestDomainPackagesDoNotImportStorage(t *testing.T) {
	config := &packages.Config{
		Mode:  packages.NeedName | packages.NeedImports,
		Tests: false,
		Dir:   guardrailRepoRoot(t),
	}
	pkgs, err := packages.Load(config, domainGuardrailPatterns()...)
	if err != nil {
		t.Fatalf("load domain packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatal("domain package load errors")
	}
	if len(pkgs) == 0 {
		t.Fatal("no domain packages found")
	}

	var violations []string
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			if !isForbiddenDomainImport(importPath) {
				continue
			}
			violations = append(violations, fmt.Sprintf("- %s imports %s", pkg.PkgPath, importPath))
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("domain packages must not depend on storage:\n%s", strings.Join(violations, "\n"))
	}
}

func TestDomainGuardrailScopes(t *testing.T) {
	patterns := domainGuardrailPatterns()
	if len(patterns) == 0 {
		t.Fatal("expected at least one package pattern")
	}
	for _, want := range []string{"./internal/mist/...", "./internal/tags/..."} {
		found := false
		for _, pattern := range patterns {
			if pattern == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected scan scope to include %s, got %v", want, patterns)
		}
	}
}

func TestForbiddenDomainImports(t *testing.T) {
	if !isForbiddenDomainImport("github.com/louisbranch/mist-engine/internal/storage") {
		t.Fatal("expected storage package to be forbidden")
	}
	if !isForbiddenDomainImport("github.com/louisbranch/mist-engine/internal/storage/sqlite") {
		t.Fatal("expected sqlite store package to be forbidden")
	}
	if isForbiddenDomainImport("github.com/louisbranch/mist-engine/internal/tags") {
		t.Fatal("expected tags package to be allowed")
	}
}

// domainGuardrailPatterns lists the packages that must stay storage-free.
func domainGuardrailPatterns() []string {
	return []string{
		"./internal/mist/...",
		"./internal/tags/...",
		"./internal/dice/...",
		"./internal/session/domain/...",
		"./internal/roll/domain/...",
	}
}

func isForbiddenDomainImport(importPath string) bool {
	path := filepath.ToSlash(strings.TrimSpace(importPath))
	if path == "" {
		return false
	}
	return strings.Contains(path, "/internal/storage")
}

func guardrailRepoRoot(t *testing.T) string {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatal("go.mod not found")
		}
		wd = parent
	}
}
