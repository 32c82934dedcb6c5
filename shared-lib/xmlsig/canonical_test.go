package xmlsig

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc.Root()
}

func canonical(t *testing.T, el *etree.Element) []byte {
	t.Helper()
	out, err := Canonicalize(el)
	require.NoError(t, err)
	return out
}

func str(s string) []byte {
	return append([]byte{byte(len(s) >> 8), byte(len(s))}, s...)
}

func TestCanonicalizeLayout(t *testing.T) {
	el := parse(t, `<a xmlns="urn:x" z="2" b="1"><c> hi </c><d/></a>`)

	var want []byte
	want = append(want, markBegin)
	want = append(want, str("urn:x")...)
	want = append(want, str("a")...)
	want = append(want, markAttribute)
	want = append(want, str("")...)
	want = append(want, str("b")...)
	want = append(want, str("1")...)
	want = append(want, markAttribute)
	want = append(want, str("")...)
	want = append(want, str("z")...)
	want = append(want, str("2")...)
	want = append(want, markEndAttributes)
	want = append(want, markBegin)
	want = append(want, str("urn:x")...)
	want = append(want, str("c")...)
	want = append(want, markEndAttributes, markText)
	want = append(want, str("hi")...)
	want = append(want, markEndElement)
	want = append(want, markBegin)
	want = append(want, str("urn:x")...)
	want = append(want, str("d")...)
	want = append(want, markEndAttributes, markEndElement)
	want = append(want, markEndElement)

	require.Equal(t, want, canonical(t, el))
}

func TestCanonicalizeEquivalence(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "attribute order",
			a:    `<r xmlns="http://ns.adobe.com/adept" x="1" y="2"/>`,
			b:    `<r xmlns="http://ns.adobe.com/adept" y="2" x="1"/>`,
		},
		{
			name: "missing namespace means adept",
			a:    `<r><user>u</user></r>`,
			b:    `<r xmlns="http://ns.adobe.com/adept"><user>u</user></r>`,
		},
		{
			name: "signature and hmac skipped",
			a:    `<r><nonce>n</nonce></r>`,
			b:    `<r><nonce>n</nonce><signature>abc</signature><hmac>h</hmac></r>`,
		},
		{
			name: "whitespace text trimmed",
			a:    `<r><v>text</v></r>`,
			b:    "<r>\n  <v>\n text\t</v>\n</r>",
		},
		{
			name: "prefix does not matter",
			a:    `<p:r xmlns:p="http://ns.adobe.com/adept"><p:v>1</p:v></p:r>`,
			b:    `<r xmlns="http://ns.adobe.com/adept"><v>1</v></r>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, canonical(t, parse(t, tt.a)), canonical(t, parse(t, tt.b)))
		})
	}
}

func TestCanonicalizeSkipsNested(t *testing.T) {
	plain := parse(t, `<r><inner><v>1</v></inner></r>`)
	signed := parse(t, `<r><inner><v>1</v><hmac>zz</hmac></inner><signature>s</signature></r>`)
	require.Equal(t, canonical(t, plain), canonical(t, signed))
}

func TestCanonicalizeDistinguishes(t *testing.T) {
	require.NotEqual(t,
		canonical(t, parse(t, `<r><v>1</v></r>`)),
		canonical(t, parse(t, `<r><v>2</v></r>`)))
	require.NotEqual(t,
		canonical(t, parse(t, `<r a="1"/>`)),
		canonical(t, parse(t, `<r b="1"/>`)))
}

func TestCanonicalizeDeterministic(t *testing.T) {
	el := parse(t, `<r b="2" a="1"><x>1</x><y/></r>`)
	require.Equal(t, canonical(t, el), canonical(t, el))
}

func TestCanonicalizeRejectsLongValues(t *testing.T) {
	fits := etree.NewElement("r")
	fits.CreateElement("v").SetText(strings.Repeat("a", 65535))
	out := canonical(t, fits)
	require.Contains(t, string(out), string(str(strings.Repeat("a", 65535))))

	tests := []struct {
		name string
		el   func() *etree.Element
	}{
		{"text", func() *etree.Element {
			el := etree.NewElement("r")
			el.SetText(strings.Repeat("a", 65536))
			return el
		}},
		{"attribute", func() *etree.Element {
			el := etree.NewElement("r")
			el.CreateAttr("a", strings.Repeat("é", 40000))
			return el
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.el())
			require.ErrorIs(t, err, ErrValueTooLong)

			key, err := rsa.GenerateKey(rand.Reader, 1024)
			require.NoError(t, err)
			_, err = NewSigner().Sign(tt.el(), x509.MarshalPKCS1PrivateKey(key))
			require.ErrorIs(t, err, ErrValueTooLong)
		})
	}
}

func TestHash(t *testing.T) {
	sum := Hash([]byte("abc"))
	require.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", hex.EncodeToString(sum[:]))
}

func TestSign(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)

	el := parse(t, `<r xmlns="http://ns.adobe.com/adept"><v>1</v></r>`)
	before := canonical(t, el)

	signer := NewSigner()
	value, err := signer.Signature(el, der)
	require.NoError(t, err)

	signed, err := signer.Sign(el, der)
	require.NoError(t, err)

	sig := signed.SelectElement("signature")
	require.NotNil(t, sig)
	require.Equal(t, value, sig.Text())

	// signing does not change what is signed
	require.Equal(t, before, canonical(t, signed))

	_, err = signer.Sign(parse(t, `<r/>`), []byte("bad"))
	require.Error(t, err)
}
