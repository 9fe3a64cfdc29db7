// Package layout splits document bodies into blocks and measures how tall
// a set of blocks renders inside a page content box.
package layout

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Block is one top-level node of a sanitized document body. Pagination
// moves whole blocks and never splits one.
type Block struct {
	// Index is the position of the block in the body, starting at 0
	Index int `json:"index"`
	// HTML is the serialized node
	HTML string `json:"html"`
	// Text is the visible text with line structure kept as newlines
	Text string `json:"text"`
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Details: true, atom.Dialog: true, atom.Dd: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Ul: true,
	atom.Tr: true, atom.Caption: true,
}

// SplitBlocks parses an HTML fragment as body content and returns its
// top-level nodes in order. Consecutive inline elements and text are
// wrapped together in one <p> block. Whitespace-only text and comments
// are dropped.
func SplitBlocks(fragment string) ([]Block, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	var blocks []Block
	var inline []*html.Node

	emit := func(n *html.Node) error {
		var b strings.Builder
		if err := html.Render(&b, n); err != nil {
			return fmt.Errorf("render block: %w", err)
		}
		blocks = append(blocks, Block{Index: len(blocks), HTML: b.String(), Text: Text(n)})
		return nil
	}
	flush := func() error {
		if len(inline) == 0 {
			return nil
		}
		p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
		for _, n := range inline {
			p.AppendChild(n)
		}
		inline = nil
		return emit(p)
	}

	for _, n := range nodes {
		switch {
		case n.Type == html.CommentNode:
			continue
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
			// Whitespace between inline runs still separates words.
			if len(inline) > 0 {
				inline = append(inline, n)
			}
		case n.Type == html.ElementNode && blockElements[n.DataAtom]:
			if err := flush(); err != nil {
				return nil, err
			}
			if err := emit(n); err != nil {
				return nil, err
			}
		default:
			inline = append(inline, n)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Text extracts the visible text of n. Block-level elements and <br> end a
// line, table cells are separated by a space, and runs of whitespace inside
// a line collapse to one space.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				b.WriteByte('\n')
				return
			case atom.Script, atom.Style, atom.Head:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch {
			case blockElements[n.DataAtom]:
				b.WriteByte('\n')
			case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
				b.WriteByte(' ')
			}
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
