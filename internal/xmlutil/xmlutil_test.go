package xmlutil

import (
	"strings"
	"testing"
)

func TestStripInlineTags(t *testing.T) {
	in := "CO<sup>2</sup> levels"
	got := StripTags(StripInlineTags(in))
	if got != "CO2 levels" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeEntities(t *testing.T) {
	got := DecodeEntities("A &amp; B &lt;x&gt; &#65;")
	if got != "A & B <x> A" {
		t.Fatalf("got %q", got)
	}
}

func TestTagText(t *testing.T) {
	doc := "<a>hello</a><b>world</b>"
	v, ok := TagText(doc, "b")
	if !ok || v != "world" {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := TagText(doc, "c"); ok {
		t.Fatalf("expected missing tag to report false")
	}
}

func TestAllTagBlocks(t *testing.T) {
	doc := `<fig id="f1"><label>1</label></fig><fig id="f2"><label>2</label></fig>`
	blocks := AllTagBlocks(doc, "fig")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	if v, _ := Attr(blocks[1], "id"); v != "f2" {
		t.Fatalf("got id %q", v)
	}
}

func TestTagDepthBlocksNested(t *testing.T) {
	doc := `<sec id="s1"><title>Outer</title><sec id="s2"><title>Inner</title><sec id="s3"><title>Deepest</title></sec></sec></sec>`
	top := TagDepthBlocks(doc, "sec")
	if len(top) != 1 {
		t.Fatalf("expected 1 top-level section, got %d", len(top))
	}
	inner := TagDepthBlocks(extractBody(top[0]), "sec")
	if len(inner) != 1 {
		t.Fatalf("expected 1 second-level section, got %d", len(inner))
	}
	deepest := TagDepthBlocks(extractBody(inner[0]), "sec")
	if len(deepest) != 1 {
		t.Fatalf("expected 1 third-level section, got %d", len(deepest))
	}
}

// extractBody strips the outer <sec ...> open tag and trailing </sec> so the
// remaining text can be rescanned for child sections.
func extractBody(block string) string {
	gt := 0
	for i, r := range block {
		if r == '>' {
			gt = i
			break
		}
	}
	return block[gt+1 : len(block)-len("</sec>")]
}

func TestNormalizeUnicodeLigatures(t *testing.T) {
	got := NormalizeUnicode("ﬁsh")
	if got != "fish" {
		t.Fatalf("got %q", got)
	}
}

func TestNewXMLDecoderHandlesDeclaredCharset(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?><Journal><Title>Nature</Title></Journal>`
	var v struct {
		Title string `xml:"Title"`
	}
	d := NewXMLDecoder(strings.NewReader(doc))
	if err := d.Decode(&v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Title != "Nature" {
		t.Fatalf("got %q", v.Title)
	}
}
