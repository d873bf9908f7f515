// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kadirpekel/advisor/pkg/catalog"
)

// CourseSections is one course's parsed section table.
type CourseSections struct {
	CourseID string
	Header   string
	Honors   bool
	Credits  *float64
	Sections map[string]catalog.Section
}

// ParseSectionTables extracts course section tables from a registration
// page fragment. Each course is an h4 element carrying the course id,
// followed by a sibling table whose rows are the section columns. A
// header ending in "Honors" marks the table as honors-only sections.
func ParseSectionTables(content string) ([]CourseSections, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse section html: %w", err)
	}

	var courses []CourseSections
	for _, h4 := range elementsByTag(root, "h4") {
		courseID := strings.ReplaceAll(attrVal(h4, "id"), "\u00a0", " ")
		if courseID == "" {
			continue
		}

		header := nodeText(h4)
		honors := false
		if strings.HasSuffix(strings.ToLower(header), "honors") {
			honors = true
			left := strings.Index(header, "-")
			right := strings.LastIndex(header, "-")
			if left >= 0 && right > left {
				header = strings.TrimSpace(header[left+1 : right])
			}
		} else if left := strings.Index(header, "-"); left >= 0 {
			header = strings.TrimSpace(header[left+1:])
		}

		table := nextSiblingTag(h4, "table")
		if table == nil {
			continue
		}

		sections := make(map[string]catalog.Section)
		var credits *float64
		rows := elementsByTag(table, "tr")
		for _, row := range rows {
			cols := rowColumns(row)
			if len(cols) == 0 {
				continue
			}
			var sec catalog.Section
			copy(sec[:], cols)
			sections[cols[0]] = sec

			// Credits live three columns from the end.
			credits = nil
			if len(cols) >= 3 {
				if v, err := strconv.ParseFloat(cols[len(cols)-3], 64); err == nil {
					credits = &v
				}
			}
		}
		if len(sections) == 0 {
			continue
		}

		courses = append(courses, CourseSections{
			CourseID: courseID,
			Header:   header,
			Honors:   honors,
			Credits:  credits,
			Sections: sections,
		})
	}
	return courses, nil
}

// rowColumns extracts the cell texts of one section row. Header rows
// (th cells only) yield nothing. Link cells use the link text; the days
// and rooms columns join line breaks with ", ".
func rowColumns(row *html.Node) []string {
	tds := elementsByTag(row, "td")
	if len(tds) == 0 {
		return nil
	}
	cols := make([]string, 0, len(tds))
	for i, td := range tds {
		var text string
		if a := firstTag(td, "a"); a != nil {
			text = nodeText(a)
		} else {
			text = nodeText(td)
		}
		if (i == 3 || i == 4) && firstTag(td, "br") != nil {
			text = textWithSeparator(td, ", ")
		}
		cols = append(cols, text)
	}
	return cols
}

// CatalogCourse is one entry parsed from a catalog listing page.
type CatalogCourse struct {
	Code  string
	Title string
	Desc  string
}

// ParseCatalogPage extracts the course blocks of a catalog listing page:
// each block's title paragraph is "<code>. <title>." and the description
// paragraph is free text.
func ParseCatalogPage(content string) ([]CatalogCourse, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog html: %w", err)
	}

	var courses []CatalogCourse
	for _, block := range elementsByClass(root, "div", "courseblock") {
		titleElem := firstByClass(block, "p", "courseblocktitle")
		if titleElem == nil {
			continue
		}
		title := strings.ReplaceAll(nodeText(titleElem), "\u00a0", " ")
		parts := strings.Split(title, ".")
		if len(parts) < 2 {
			continue
		}

		desc := ""
		if descElem := firstByClass(block, "p", "courseblockdesc"); descElem != nil {
			desc = strings.ReplaceAll(nodeText(descElem), "\u00a0", " ")
		}

		courses = append(courses, CatalogCourse{
			Code:  strings.TrimSpace(parts[0]),
			Title: strings.TrimSpace(parts[1]),
			Desc:  desc,
		})
	}
	return courses, nil
}

// ParseSearchResult extracts title and description from a catalog search
// page. The title is what follows the course code in the result header.
func ParseSearchResult(content string) (title, desc string, err error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse search html: %w", err)
	}

	result := firstByClass(root, "div", "search-courseresult")
	if result == nil {
		return "", "", fmt.Errorf("no course result block found")
	}
	h2 := firstTag(result, "h2")
	if h2 == nil {
		return "", "", fmt.Errorf("course result has no header")
	}
	headerParts := strings.SplitN(nodeText(h2), ".", 2)
	if len(headerParts) == 2 {
		title = strings.TrimSpace(headerParts[1])
	}

	if p := firstByClass(root, "p", "courseblockdesc"); p != nil {
		desc = strings.TrimSpace(nodeText(p))
	}
	return title, desc, nil
}

// elementsByTag collects every element with the given tag, in document
// order.
func elementsByTag(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// firstTag returns the first descendant element with the given tag.
func firstTag(n *html.Node, tag string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return found
}

// nextSiblingTag returns the first following sibling with the given tag.
func nextSiblingTag(n *html.Node, tag string) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == tag {
			return s
		}
	}
	return nil
}

// elementsByClass collects elements with the given tag carrying the
// class.
func elementsByClass(n *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	for _, el := range elementsByTag(n, tag) {
		if hasClass(el, class) {
			out = append(out, el)
		}
	}
	return out
}

// firstByClass returns the first element with the given tag and class.
func firstByClass(n *html.Node, tag, class string) *html.Node {
	for _, el := range elementsByTag(n, tag) {
		if hasClass(el, class) {
			return el
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attrVal(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates the stripped text fragments of a subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(node.Data))
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// textWithSeparator renders a subtree's text with br elements replaced
// by the separator.
func textWithSeparator(n *html.Node, sep string) string {
	var parts []string
	var current strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "br" {
			if s := strings.TrimSpace(current.String()); s != "" {
				parts = append(parts, s)
			}
			current.Reset()
			return
		}
		if node.Type == html.TextNode {
			current.WriteString(strings.TrimSpace(node.Data))
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if s := strings.TrimSpace(current.String()); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, sep)
}
