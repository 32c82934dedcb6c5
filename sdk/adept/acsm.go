package adept

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// ACSM is a parsed fulfillment token file.
type ACSM struct {
	OperatorURL string
	// Title is informational and may be empty.
	Title string
	Token *etree.Element
}

// ParseACSM reads a fulfillmentToken document.
func ParseACSM(r io.Reader) (*ACSM, error) {
	const op = "ACSM"
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, &ProtocolError{Kind: KindParse, Operation: op, Message: "malformed token", Err: err}
	}
	root := doc.Root()
	if root == nil || root.Tag != "fulfillmentToken" {
		return nil, parseError(op, "not a fulfillmentToken document")
	}

	operator, err := requiredText(op, root, "operatorURL")
	if err != nil {
		return nil, err
	}

	acsm := &ACSM{
		OperatorURL: strings.TrimSpace(operator),
		Token:       detach(root),
	}
	if title := child(childPath(root, "resourceItemInfo", "metadata"), DublinCoreNamespace, "title"); title != nil {
		acsm.Title = strings.TrimSpace(title.Text())
	}
	return acsm, nil
}

// ReadACSMFile opens and parses an .acsm file.
func ReadACSMFile(filename string) (*ACSM, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()
	return ParseACSM(f)
}
