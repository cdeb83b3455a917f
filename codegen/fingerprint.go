package codegen

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/cnf/structhash"
	"github.com/npillmayer/rulegen/rules"
	"github.com/pkg/errors"
)

// fingerprintVersion is bumped whenever the layout of generated code changes.
const fingerprintVersion = 1

const fingerprintPrefix = "// Fingerprint: "

// fingerprint is the input of an artifact fingerprint: everything generated code
// depends on.
type fingerprint struct {
	Name        string
	Rules       []string
	Schema      []string
	Literals    map[string]string
	Reclaimable []string
	Wrappers    map[string]string
}

// Fingerprint computes a hash over the rules of a program and the schema
// entries they were compiled against. Generated units carry it in their
// header, which lets build tools find out whether they are stale.
func Fingerprint(prog *rules.Program) (string, error) {
	s := prog.Schema
	f := fingerprint{
		Name:        prog.Name,
		Literals:    make(map[string]string, len(s.Literals)),
		Reclaimable: s.Reclaimable,
		Wrappers:    s.Wrappers,
	}
	for role, op := range s.Literals {
		f.Literals[string(role)] = op
	}
	for _, r := range prog.Rules {
		f.Rules = append(f.Rules, r.String())
	}
	for _, op := range s.Ops() {
		f.Schema = append(f.Schema, s.MustGet(op).String())
	}
	h, err := structhash.Hash(f, fingerprintVersion)
	if err != nil {
		return "", errors.Wrap(err, "fingerprint")
	}
	return h, nil
}

// FingerprintOf returns the fingerprint recorded in the header of a generated
// declaration unit, or "" if there is none.
func FingerprintOf(decl []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(decl))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, fingerprintPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, fingerprintPrefix))
		}
		if strings.HasPrefix(line, "package ") {
			break
		}
	}
	return ""
}
