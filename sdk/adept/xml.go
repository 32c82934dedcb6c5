package adept

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/libreadept/adl/shared-lib/xmlsig"
)

const (
	// Namespace is the ADEPT XML namespace.
	Namespace = xmlsig.DefaultNamespace

	// DublinCoreNamespace qualifies book metadata such as dc:title.
	DublinCoreNamespace = "http://purl.org/dc/elements/1.1/"
)

// Signer appends a signature to a request element.
type Signer interface {
	Sign(el *etree.Element, privateKeyDER []byte) (*etree.Element, error)
}

func newRequest(tag string, attrs ...string) *etree.Element {
	el := etree.NewElement(tag)
	el.CreateAttr("xmlns", Namespace)
	for i := 0; i+1 < len(attrs); i += 2 {
		el.CreateAttr(attrs[i], attrs[i+1])
	}
	return el
}

// addText appends <name>text</name>. An empty text yields <name/>.
func addText(parent *etree.Element, name, text string) *etree.Element {
	child := parent.CreateElement(name)
	if text != "" {
		child.SetText(text)
	}
	return child
}

func serialize(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToBytes()
}

func parseReply(op string, reply []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(reply); err != nil {
		return nil, &ProtocolError{Kind: KindParse, Operation: op, Message: "malformed reply", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, parseError(op, "empty reply")
	}
	return root, nil
}

// namespaceOf treats unqualified elements as ADEPT ones.
func namespaceOf(el *etree.Element) string {
	if ns := el.NamespaceURI(); ns != "" {
		return ns
	}
	return Namespace
}

// child returns the first child element of el with the given namespace and
// local name.
func child(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local && namespaceOf(c) == ns {
			return c
		}
	}
	return nil
}

// childPath walks a chain of ADEPT child elements.
func childPath(el *etree.Element, locals ...string) *etree.Element {
	for _, local := range locals {
		el = child(el, Namespace, local)
		if el == nil {
			return nil
		}
	}
	return el
}

func requiredText(op string, el *etree.Element, locals ...string) (string, error) {
	found := childPath(el, locals...)
	if found == nil {
		return "", parseError(op, "missing <%s> in <%s>", locals[len(locals)-1], el.Tag)
	}
	return found.Text(), nil
}

// replyError returns the data attribute of an <error> element found at the
// root of reply or anywhere below it.
func replyError(root *etree.Element) (string, bool) {
	if root.Tag == "error" {
		return root.SelectAttrValue("data", ""), true
	}
	if el := root.FindElement(".//error"); el != nil {
		return el.SelectAttrValue("data", ""), true
	}
	return "", false
}

// detach copies el and declares its namespace on the copy so it serializes
// on its own.
func detach(el *etree.Element) *etree.Element {
	c := el.Copy()
	if c.Space != "" || c.SelectAttr("xmlns") != nil {
		return c
	}
	if ns := el.NamespaceURI(); ns != "" {
		c.CreateAttr("xmlns", ns)
		last := c.Attr[len(c.Attr)-1]
		copy(c.Attr[1:], c.Attr[:len(c.Attr)-1])
		c.Attr[0] = last
	}
	return c
}

// embed copies el for insertion under a parent whose default namespace is
// ns, dropping the now redundant declaration.
func embed(el *etree.Element, ns string) *etree.Element {
	c := el.Copy()
	if a := c.SelectAttr("xmlns"); a != nil && a.Space == "" && a.Value == ns {
		c.RemoveAttr("xmlns")
	}
	return c
}

// Serialize renders el as a standalone XML document without declaration.
func Serialize(el *etree.Element) (string, error) {
	data, err := serialize(el)
	if err != nil {
		return "", fmt.Errorf("failed to serialize <%s>: %w", el.Tag, err)
	}
	return string(data), nil
}
