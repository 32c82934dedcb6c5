// Package xmlsig implements the ADEPT canonical byte form of an XML element
// and the signature computed over it.
package xmlsig

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// DefaultNamespace is assumed for elements that do not resolve to any
// namespace.
const DefaultNamespace = "http://ns.adobe.com/adept"

const (
	markBegin         byte = 1
	markEndAttributes byte = 2
	markEndElement    byte = 3
	markText          byte = 4
	markAttribute     byte = 5
)

// Elements with these local names never contribute to the canonical form.
var skipped = map[string]bool{
	"signature": true,
	"hmac":      true,
}

// ErrValueTooLong is returned for names, attribute values or text whose UTF-8
// length does not fit the 16-bit length prefix.
var ErrValueTooLong = errors.New("value longer than 65535 bytes")

type encoder struct {
	buf bytes.Buffer
	err error
}

// Canonicalize returns the canonical byte form of el and its descendants.
func Canonicalize(el *etree.Element) ([]byte, error) {
	var enc encoder
	enc.writeElement(el)
	if enc.err != nil {
		return nil, enc.err
	}
	return enc.buf.Bytes(), nil
}

func (e *encoder) writeElement(el *etree.Element) {
	if skipped[el.Tag] {
		return
	}

	ns := el.NamespaceURI()
	if ns == "" {
		ns = DefaultNamespace
	}

	e.buf.WriteByte(markBegin)
	e.writeString(ns)
	e.writeString(el.Tag)

	attrs := make([]etree.Attr, 0, len(el.Attr))
	for _, a := range el.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		attrs = append(attrs, a)
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })

	for _, a := range attrs {
		e.buf.WriteByte(markAttribute)
		e.writeString("")
		e.writeString(a.Key)
		e.writeString(a.Value)
	}
	e.buf.WriteByte(markEndAttributes)

	children := el.ChildElements()
	for _, child := range children {
		e.writeElement(child)
	}

	if len(children) == 0 {
		if text := strings.TrimSpace(charData(el)); text != "" {
			e.buf.WriteByte(markText)
			e.writeString(text)
		}
	}

	e.buf.WriteByte(markEndElement)
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

func charData(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}

// writeString emits a big-endian u16 byte length followed by the UTF-8 bytes.
func (e *encoder) writeString(s string) {
	if e.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		e.err = fmt.Errorf("%w: %d bytes", ErrValueTooLong, len(s))
		return
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	e.buf.Write(n[:])
	e.buf.WriteString(s)
}

// Hash returns the SHA-1 of the canonical bytes. The digest is reframed as
// five big-endian words, which leaves the bytes unchanged.
func Hash(canon []byte) [sha1.Size]byte {
	sum := sha1.Sum(canon)

	var out [sha1.Size]byte
	for i := 0; i < sha1.Size/4; i++ {
		binary.BigEndian.PutUint32(out[i*4:], binary.BigEndian.Uint32(sum[i*4:]))
	}
	return out
}
