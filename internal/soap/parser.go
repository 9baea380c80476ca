package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Element is a parsed XML element. It keeps only what the control protocol
// needs: the local name, accumulated character data, and child elements.
type Element struct {
	Name     string
	Text     string
	Children []*Element
}

// Child returns the first direct child with the given local name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if nameMatches(c.Name, name) {
			return c
		}
	}
	return nil
}

// Find returns the first descendant (depth-first, including e itself) with
// the given local name, or nil.
func (e *Element) Find(name string) *Element {
	if e == nil {
		return nil
	}
	if nameMatches(e.Name, name) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// TextOf returns the text of the named descendant. Values appear on the wire
// either as a bare scalar ("<BinaryState>1</BinaryState>") or wrapped in a
// single-field element; both shapes resolve to the inner text here.
func (e *Element) TextOf(name string) string {
	el := e.Find(name)
	if el == nil {
		return ""
	}
	if t := strings.TrimSpace(el.Text); t != "" {
		return t
	}
	if len(el.Children) == 1 {
		return strings.TrimSpace(el.Children[0].Text)
	}
	return ""
}

// Int returns the named descendant's text parsed as an integer. Missing
// elements and non-numeric text both coerce to def rather than erroring.
func (e *Element) Int(name string, def int) int {
	t := e.TextOf(name)
	if t == "" {
		return def
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return def
	}
	return n
}

// nameMatches compares local element names, tolerating an undeclared-prefix
// artifact ("u:SetBinaryStateResponse") left in the local name by lenient
// parsers.
func nameMatches(have, want string) bool {
	if have == want {
		return true
	}
	if i := strings.LastIndexByte(have, ':'); i >= 0 {
		return have[i+1:] == want
	}
	return false
}

// parseTree decodes raw XML into an Element tree rooted at the document
// element.
func parseTree(raw []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	// Device firmware occasionally mislabels the charset.
	dec.Strict = false

	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return nil, &EnvelopeError{Reason: fmt.Sprintf("malformed XML: %v", err)}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, &EnvelopeError{Reason: "multiple document roots"}
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, &EnvelopeError{Reason: "empty document"}
	}
	return root, nil
}

// ParseResponse locates the "<action>Response" payload inside a response
// envelope. A structurally broken envelope (no root Envelope element, or an
// Envelope without a Body) returns an *EnvelopeError. A well-formed envelope
// whose body lacks the response element returns (nil, nil): many actions
// acknowledge with an empty body.
func ParseResponse(action string, raw []byte) (*Element, error) {
	root, err := parseTree(raw)
	if err != nil {
		return nil, err
	}
	if !nameMatches(root.Name, "Envelope") {
		return nil, &EnvelopeError{Reason: "response has no envelope root"}
	}
	body := root.Child("Body")
	if body == nil {
		return nil, &EnvelopeError{Reason: "envelope has no body"}
	}
	return body.Child(action + "Response"), nil
}

// EnvelopeError reports a malformed or structurally unexpected envelope.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return "invalid envelope: " + e.Reason
}
