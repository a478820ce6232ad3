// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromXML_EntitiesAndJoin(t *testing.T) {
	got := Text([]byte(`<root><a>hello</a>&amp;<b>world</b></root>`), KindXML)
	assert.Equal(t, "hello & world", got)
}

func TestFromXML_CollapsesWhitespace(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<alto>
  <Page>
    <String>  Handelingen   der  </String>
    <String>
      Staten-Generaal
    </String>
  </Page>
</alto>`)
	assert.Equal(t, "Handelingen der Staten-Generaal", FromXML(raw))
}

func TestFromXML_KeepsEveryElement(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "TEI heading",
			raw:  `<TEI><text><body><div><head>Zitting van 12 Maart</head><p>De Voorzitter opent</p></div></body></text></TEI>`,
			want: "Zitting van 12 Maart De Voorzitter opent",
		},
		{
			name: "meta element",
			raw:  `<doc><meta>Titel</meta><p>tekst</p></doc>`,
			want: "Titel tekst",
		},
		{
			name: "script and style names",
			raw:  `<doc><style>kop</style><script>regel</script><p>slot</p></doc>`,
			want: "kop regel slot",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromXML([]byte(tt.raw)))
		})
	}
}

func TestFromXML_RecoversFromMalformedMarkup(t *testing.T) {
	got := FromXML([]byte(`<root><p>eerste</p><p>tweede</root>`))
	assert.Contains(t, got, "eerste")
	assert.Contains(t, got, "tweede")

	truncated := FromXML([]byte(`<root><p>eerste</p><p>twee`))
	assert.Contains(t, truncated, "eerste")
}

func TestFromXML_HTMLEntities(t *testing.T) {
	assert.Equal(t, "café – ok", FromXML([]byte(`<p>caf&eacute; &ndash; ok</p>`)))
}

func TestFromXML_Latin1Declared(t *testing.T) {
	raw := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><p>caf`), 0xe9, '<', '/', 'p', '>')
	assert.Equal(t, "café", FromXML(raw))
}

func TestFromXML_Empty(t *testing.T) {
	assert.Equal(t, "", FromXML(nil))
	assert.Equal(t, "", FromXML([]byte(`<root>   </root>`)))
}

func TestFromHTML_RemovesScriptsAndMetadata(t *testing.T) {
	raw := []byte(`<!DOCTYPE html>
<html><head><title>Titel</title><meta name="x" content="y"><style>p{}</style></head>
<body>
  <nav>Menu</nav>
  <p>Tweede   Kamer</p>
  <script>var hidden = 1;</script>
  <noscript>enable js</noscript>
  <p>Vergadering</p>
</body></html>`)
	assert.Equal(t, "Menu Tweede Kamer Vergadering", FromHTML(raw))
}

func TestText_Idempotent(t *testing.T) {
	inputs := []struct {
		raw  string
		kind Kind
	}{
		{`<root><a>hello</a>&amp;<b>world</b></root>`, KindXML},
		{`<html><body><p>één</p><script>x</script></body></html>`, KindHTML},
		{`<broken><a>half`, KindXML},
	}
	for _, in := range inputs {
		first := Text([]byte(in.raw), in.kind)
		second := Text([]byte(in.raw), in.kind)
		assert.Equal(t, first, second)
	}
}

func TestText_UnknownKind(t *testing.T) {
	assert.Equal(t, "", Text([]byte("%PDF-1.4"), KindUnknown))
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		raw  string
		want Kind
	}{
		{"xml header", "text/xml; charset=utf-8", "", KindXML},
		{"application xml", "application/xml", "", KindXML},
		{"html header", "text/html", "", KindHTML},
		{"xhtml header", "application/xhtml+xml", "", KindHTML},
		{"sniff xml decl", "", `<?xml version="1.0"?><a/>`, KindXML},
		{"sniff doctype", "application/octet-stream", "  <!DOCTYPE html><html></html>", KindHTML},
		{"sniff element", "", "<alto></alto>", KindXML},
		{"pdf", "application/pdf", "%PDF-1.4", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.ct, []byte(tt.raw)))
		})
	}
}
