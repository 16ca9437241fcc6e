package mdrender

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func render(t *testing.T, width int, input string) string {
	t.Helper()
	var buf bytes.Buffer
	r := New(&buf, width)
	_, err := r.Write([]byte(input))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return buf.String()
}

func TestRenderPlainText(t *testing.T) {
	require.Equal(t, "hello world\n", render(t, 0, "hello world\n"))
}

func TestRenderHeading(t *testing.T) {
	got := render(t, 0, "# Title\n")
	require.Equal(t, sgrBold+sgrHeading+"Title"+sgrReset+"\n", got)
}

func TestRenderBold(t *testing.T) {
	got := render(t, 0, "**bold** x\n")
	require.Equal(t, sgrBold+"bold"+sgrBoldOff+" x\n", got)

	require.Equal(t, got, render(t, 0, "__bold__ x\n"))
}

func TestRenderItalicAndStrike(t *testing.T) {
	require.Equal(t, sgrItalic+"it"+sgrItalicOff+"\n", render(t, 0, "*it*\n"))
	require.Equal(t, sgrItalic+"it"+sgrItalicOff+"\n", render(t, 0, "_it_\n"))
	require.Equal(t, sgrStrike+"gone"+sgrStrikeOff+"\n", render(t, 0, "~~gone~~\n"))
}

func TestRenderInlineCode(t *testing.T) {
	got := render(t, 0, "run `ls -la` now\n")
	require.Equal(t, "run "+sgrDim+"ls -la"+sgrDimOff+" now\n", got)
}

func TestInlineCodeSuppressesOtherMarkers(t *testing.T) {
	got := render(t, 0, "`**not bold**`\n")
	require.Equal(t, sgrDim+"**not bold**"+sgrDimOff+"\n", got)
}

func TestRenderListItems(t *testing.T) {
	require.Equal(t, "• item\n", render(t, 0, "- item\n"))
	require.Equal(t, "• item\n", render(t, 0, "* item\n"))
	require.Equal(t, "3. third\n", render(t, 0, "3. third\n"))
}

func TestRenderHorizontalRule(t *testing.T) {
	for _, hr := range []string{"---\n", "***\n", "___\n"} {
		got := render(t, 10, hr)
		require.Equal(t, sgrDim+strings.Repeat("─", 10)+sgrDimOff+"\n", got, "rule %q", hr)
	}
}

func TestRenderBlockquoteLevels(t *testing.T) {
	require.Equal(t, sgrDim+"│ "+sgrDimOff+"quoted\n", render(t, 0, "> quoted\n"))
	require.Equal(t, sgrDim+"│ │ "+sgrDimOff+"deep\n", render(t, 0, ">> deep\n"))
}

func TestRenderFencedCodeBlock(t *testing.T) {
	got := render(t, 0, "```go\nx := 1\n```\nafter\n")
	require.Equal(t, sgrDim+"x := 1"+sgrDimOff+"\nafter\n", got)
}

func TestFenceContentIsNotInterpreted(t *testing.T) {
	got := render(t, 0, "```\n# not a heading\n```\n")
	require.Equal(t, sgrDim+"# not a heading"+sgrDimOff+"\n", got)
}

func TestRenderLink(t *testing.T) {
	got := render(t, 0, "[docs](https://example.com)\n")
	require.Equal(t, sgrLink+sgrUnderline+"docs"+sgrUnderOff+sgrFgOff+" (https://example.com)\n", got)
}

func TestRenderCitationAndTable(t *testing.T) {
	got := render(t, 0, "fact [[1]](https://src.example)\n")
	want := "fact " + sgrCiteColor + "[^1]" + sgrFgOff + "\n" +
		"\n" + sgrDim + "[1] https://src.example" + sgrDimOff + "\n"
	require.Equal(t, want, got)
}

func TestRenderEntities(t *testing.T) {
	require.Equal(t, "<tag> & \"q\"\n", render(t, 0, "&lt;tag&gt; &amp; &quot;q&quot;\n"))
}

func TestWordWrapInsertsNewlines(t *testing.T) {
	require.Equal(t, "abcde\nfgh\n", render(t, 5, "abcdefgh\n"))
}

func TestWordWrapPreservesAttributes(t *testing.T) {
	got := render(t, 5, "**abcdefgh**\n")
	require.Equal(t, sgrBold+"abcde\n"+sgrBold+"fgh"+sgrBoldOff+"\n", got)
}

func TestAttributesResetOnExplicitNewline(t *testing.T) {
	// An unclosed bold span does not leak into the next line.
	got := render(t, 0, "**open\nnext\n")
	require.Equal(t, sgrBold+"open"+sgrReset+"\nnext\n", got)
}

func TestStreamingSplitsAreInvisible(t *testing.T) {
	doc := "# Head\n\nsome **bold** and `code`\n- a\n- b\n"

	var whole bytes.Buffer
	r := New(&whole, 40)
	_, err := r.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	var pieces bytes.Buffer
	r2 := New(&pieces, 40)
	for i := 0; i < len(doc); i++ {
		_, err := r2.Write([]byte{doc[i]})
		require.NoError(t, err)
	}
	require.NoError(t, r2.Close())

	require.Equal(t, whole.String(), pieces.String())
}

func TestCloseFlushesPartialLine(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 0)
	_, err := r.Write([]byte("no trailing newline"))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "no trailing newline\n", buf.String())
}

func TestPrepareTablesWrapsWellFormedTable(t *testing.T) {
	doc := "before\n| a | b |\n|---|---|\n| 1 | 2 |\nafter"
	got := PrepareTables(doc)
	require.Equal(t, "before\n```\n| a | b |\n|---|---|\n| 1 | 2 |\n```\nafter", got)
}

func TestPrepareTablesIgnoresMalformed(t *testing.T) {
	doc := "| a | b |\n| 1 | 2 |"
	require.Equal(t, doc, PrepareTables(doc))

	headerOnly := "| a | b |\n|---|---|"
	require.Equal(t, headerOnly, PrepareTables(headerOnly))
}
