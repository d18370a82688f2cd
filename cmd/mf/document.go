package main

import (
	"fmt"
	"strings"

	"github.com/steveyegge/markform/internal/config"
	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/lockfile"
	"github.com/steveyegge/markform/internal/markup"
)

// loadDocument reads and parses the document at path under a shared lock.
func loadDocument(path string) (*form.Document, error) {
	data, err := lockfile.ReadShared(path)
	if err != nil {
		return nil, err
	}
	doc, err := markup.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// updateDocument runs fn on the parsed document while holding an exclusive
// lock, and writes the result back when fn reports a change.
func updateDocument(path string, fn func(doc *form.Document) (changed bool, err error)) error {
	l, err := lockfile.Exclusive(path)
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	data, err := l.Read()
	if err != nil {
		return err
	}
	doc, err := markup.Parse(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return l.Write([]byte(markup.Serialize(doc)))
}

// resolveSyntax picks the marker syntax from a --syntax flag value, then the
// syntax.style setting. Empty means keep the document's own syntax.
func resolveSyntax(flag string) (form.Syntax, error) {
	s := strings.TrimSpace(flag)
	if s == "" {
		s = config.GetString("syntax.style")
	}
	if s == "" {
		return "", nil
	}
	style := form.Syntax(s)
	if !style.IsValid() {
		return "", fmt.Errorf("unknown syntax %q (want %s or %s)", s, form.SyntaxTags, form.SyntaxComments)
	}
	return style, nil
}

// resolveRoles is parseRoles falling back to the harness.target-roles setting.
func resolveRoles(flag []string) form.RoleSet {
	if len(flag) == 0 {
		flag = config.GetStringSlice(config.KeyHarnessTargetRoles)
	}
	return parseRoles(flag)
}

// parseRoles turns --roles values into a role set. Entries may be comma
// separated; no entries means every role.
func parseRoles(flag []string) form.RoleSet {
	var roles form.RoleSet
	for _, entry := range flag {
		for _, r := range strings.Split(entry, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, form.Role(r))
			}
		}
	}
	return roles
}
