package authentication

// File implements login form scraping.
// The identity provider renders plain HTML forms. The client locates the login form by the names of
// its fields rather than by id or class, since the markup around the form changes frequently.

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	identifierFields = []string{"username", "email", "identifier"}
	passwordFields   = []string{"password"}

	errNoLoginForm = errors.New("no login form found")
	errNoCSRFField = errors.New("login form has no hidden fields")
)

// loginForm is a scraped HTML form.
type loginForm struct {
	Action     *url.URL
	Method     string
	Hidden     url.Values
	Identifier string // Name of the identifier field, if present.
	Password   string // Name of the password field, if present.
}

// HasPassword returns true if the form collects the password. The single-page login variant asks
// for the identifier and password together.
func (f *loginForm) HasPassword() bool {
	return f.Password != ""
}

// State returns the state token carried in the form's hidden fields.
func (f *loginForm) State() string {
	return f.Hidden.Get("state")
}

// Values returns the form submission with the hidden fields and the provided credentials.
func (f *loginForm) Values(identifier, password string) url.Values {
	values := url.Values{}
	for k, v := range f.Hidden {
		values[k] = append([]string(nil), v...)
	}
	if f.Identifier != "" && identifier != "" {
		values.Set(f.Identifier, identifier)
	}
	if f.Password != "" && password != "" {
		values.Set(f.Password, password)
	}
	return values
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if visit(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walk(c, visit) {
			return true
		}
	}
	return false
}

// scrapeForm reads the inputs of a <form> element.
func scrapeForm(form *html.Node, page *url.URL) *loginForm {
	result := &loginForm{Method: "POST", Hidden: url.Values{}}
	if method, ok := attr(form, "method"); ok && method != "" {
		result.Method = strings.ToUpper(method)
	}
	if action, ok := attr(form, "action"); ok && action != "" {
		if u, err := url.Parse(action); err == nil {
			if page != nil {
				u = page.ResolveReference(u)
			}
			result.Action = u
		}
	}
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Input {
			return false
		}
		name, _ := attr(n, "name")
		if name == "" {
			return false
		}
		kind, _ := attr(n, "type")
		value, _ := attr(n, "value")
		switch {
		case strings.EqualFold(kind, "hidden"):
			result.Hidden.Add(name, value)
		case matchesAny(name, passwordFields) || strings.EqualFold(kind, "password"):
			result.Password = name
		case matchesAny(name, identifierFields):
			result.Identifier = name
		}
		return false
	})
	return result
}

// parseLoginForm returns the first form in body that asks for an identifier or a password. Relative
// form actions are resolved against page.
func parseLoginForm(body []byte, page *url.URL) (*loginForm, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var found *loginForm
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Form {
			return false
		}
		form := scrapeForm(n, page)
		if form.Identifier == "" && form.Password == "" {
			return false
		}
		found = form
		return true
	})
	if found == nil {
		return nil, errNoLoginForm
	}
	if len(found.Hidden) == 0 {
		return nil, errNoCSRFField
	}
	return found, nil
}

// errorCodes returns the data-error-code attributes of the elements whose id is one of ids.
func errorCodes(body []byte, ids ...string) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var codes []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		id, _ := attr(n, "id")
		if !matchesAny(id, ids) {
			return false
		}
		if code, ok := attr(n, "data-error-code"); ok && code != "" {
			codes = append(codes, code)
		}
		return false
	})
	return codes
}
