package engine

import (
	"strings"

	"golang.org/x/net/html"
)

// pageMarkers is what the engine needs to know about an HTML page returned
// by the login, leave and logout endpoints.
type pageMarkers struct {
	loggedIn bool
	alert    string
	hasAlert bool
}

// inspectPage looks for the logged-in navigation item (li#nav-user) and the
// first div whose class is exactly "alert".
func inspectPage(page string) pageMarkers {
	var m pageMarkers
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return m
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "li" && attr(n, "id") == "nav-user":
				m.loggedIn = true
			case n.Data == "div" && attr(n, "class") == "alert" && !m.hasAlert:
				m.hasAlert = true
				m.alert = strings.Join(strings.Fields(textContent(n)), " ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return m
}

func isLoggedPage(page string) bool {
	return inspectPage(page).loggedIn
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
