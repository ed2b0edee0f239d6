package installer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fernvc/wcedit/installer"
)

func TestNormalizeEOLCollapsesEveryStyleToLF(t *testing.T) {
	crlf := []byte("one\r\ntwo\r\nthree")
	cr := []byte("one\rtwo\rthree")
	mixed := []byte("one\r\ntwo\rthree\n")

	want := "one\ntwo\nthree"
	assert.Equal(t, want, string(installer.NormalizeEOL(crlf)))
	assert.Equal(t, want, string(installer.NormalizeEOL(cr)))
	assert.Equal(t, "one\ntwo\nthree\n", string(installer.NormalizeEOL(mixed)))
}

func TestApplyEOLRoundTripsThroughNormalize(t *testing.T) {
	normalized := []byte("one\ntwo\nthree\n")

	cases := []struct {
		style installer.EOLStyle
		want  string
	}{
		{installer.EOLNone, "one\ntwo\nthree\n"},
		{installer.EOLLF, "one\ntwo\nthree\n"},
		{installer.EOLNative, "one\ntwo\nthree\n"},
		{installer.EOLCRLF, "one\r\ntwo\r\nthree\r\n"},
		{installer.EOLCR, "one\rtwo\rthree\r"},
	}
	for _, c := range cases {
		applied := installer.ApplyEOL(normalized, c.style)
		assert.Equal(t, c.want, string(applied), "style %q", c.style)
		assert.Equal(t, string(normalized), string(installer.NormalizeEOL(applied)), "normalize(apply(x)) == x for %q", c.style)
	}
}

func TestExpandContractKeywordsRoundTrip(t *testing.T) {
	kw := installer.Keywords{Revision: "42", Date: "2026-01-01", Author: "alice", URL: "file:///repo/f.txt"}
	contracted := []byte("header $Revision$ and $Author$ and untouched $Bogus$ text")

	expanded := installer.ExpandKeywords(contracted, kw)
	assert.Equal(t, "header $Revision: 42 $ and $Author: alice $ and untouched $Bogus$ text", string(expanded))

	back := installer.ContractKeywords(expanded)
	assert.Equal(t, string(contracted), string(back))
}

func TestExpandKeywordsLeavesUnsetKeywordContracted(t *testing.T) {
	kw := installer.Keywords{}
	data := []byte("$Revision$")
	assert.Equal(t, "$Revision$", string(installer.ExpandKeywords(data, kw)))
}

func TestExpandKeywordsAliases(t *testing.T) {
	kw := installer.Keywords{Revision: "7", Date: "2026-03-04", Author: "bob", URL: "file:///repo/f.txt"}

	assert.Equal(t, "$Rev: 7 $", string(installer.ExpandKeywords([]byte("$Rev$"), kw)))
	assert.Equal(t, "$LastChangedRevision: 7 $", string(installer.ExpandKeywords([]byte("$LastChangedRevision$"), kw)))
	assert.Equal(t, "$LastChangedBy: bob $", string(installer.ExpandKeywords([]byte("$LastChangedBy$"), kw)))
	assert.Equal(t, "$HeadURL: file:///repo/f.txt $", string(installer.ExpandKeywords([]byte("$HeadURL$"), kw)))

	want := "$Id: file:///repo/f.txt 7 2026-03-04 bob $"
	assert.Equal(t, want, string(installer.ExpandKeywords([]byte("$Id$"), kw)))
}

func TestExpandKeywordsReplacesStaleExpandedValue(t *testing.T) {
	kw := installer.Keywords{Revision: "9"}
	stale := []byte("$Revision: 1 $")
	assert.Equal(t, "$Revision: 9 $", string(installer.ExpandKeywords(stale, kw)))
	assert.Equal(t, "$Revision$", string(installer.ContractKeywords(stale)))
}
