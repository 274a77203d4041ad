package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
)

// RequiredCookies must be present for an authenticated Facebook session
var RequiredCookies = []string{"c_user", "xs"}

var (
	ErrCookieFileNotFound  = errors.New("cookie file not found")
	ErrInvalidCookieFormat = errors.New("invalid cookie file format")
	ErrMissingCookies      = errs.ErrCookiesMissing
)

// Cookie is one entry of a browser storage-state export
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieBundle is the {"cookies": [...], "origins": [...]} storage-state
// export produced by browser cookie tools.
type CookieBundle struct {
	Cookies []Cookie          `json:"cookies"`
	Origins []json.RawMessage `json:"origins"`
}

// LoadCookieBundle reads and validates a cookie export file
func LoadCookieBundle(path string) (*CookieBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s\nPlease export your Facebook cookies and save them to this location.\nRun 'fbcleanup auth guide' for instructions", ErrCookieFileNotFound, path)
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	b, err := ParseCookieBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseCookieBundle decodes an export, requiring a cookies list whose
// entries carry string name, value, domain and path fields.
func ParseCookieBundle(data []byte) (*CookieBundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v\nExpected format: {\"cookies\": [...], \"origins\": []}", ErrInvalidCookieFormat, err)
	}

	list, ok := raw["cookies"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"cookies\" key", ErrInvalidCookieFormat)
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil, fmt.Errorf("%w: \"cookies\" is not a list of objects", ErrInvalidCookieFormat)
	}
	for i, e := range entries {
		for _, field := range []string{"name", "value", "domain", "path"} {
			v, ok := e[field]
			if !ok {
				return nil, fmt.Errorf("%w: cookie %d missing field %q", ErrInvalidCookieFormat, i, field)
			}
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("%w: cookie %d field %q is not a string", ErrInvalidCookieFormat, i, field)
			}
		}
	}

	var b CookieBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookieFormat, err)
	}
	if b.Origins == nil {
		b.Origins = []json.RawMessage{}
	}
	return &b, nil
}

// ValidateFormat checks a bundle built in code
func (b *CookieBundle) ValidateFormat() error {
	if b == nil || b.Cookies == nil {
		return fmt.Errorf("%w: no cookies", ErrInvalidCookieFormat)
	}
	for i, c := range b.Cookies {
		if c.Name == "" || c.Domain == "" || c.Path == "" {
			return fmt.Errorf("%w: cookie %d needs name, domain and path", ErrInvalidCookieFormat, i)
		}
	}
	return nil
}

// CheckRequiredCookies reports whether every RequiredCookies name is
// present, and which are missing.
func (b *CookieBundle) CheckRequiredCookies() (bool, []string) {
	if b == nil {
		return false, append([]string(nil), RequiredCookies...)
	}
	var missing []string
	for _, name := range RequiredCookies {
		if _, ok := b.Value(name); !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// Value returns the value of the named cookie
func (b *CookieBundle) Value(name string) (string, bool) {
	if b == nil {
		return "", false
	}
	for _, c := range b.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// UserID is the numeric account id carried in c_user
func (b *CookieBundle) UserID() string {
	v, _ := b.Value("c_user")
	return v
}

// BrowserCookies converts the bundle for browser.Launch
func (b *CookieBundle) BrowserCookies() []browser.Cookie {
	out := make([]browser.Cookie, 0, len(b.Cookies))
	for _, c := range b.Cookies {
		out = append(out, browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
	return out
}

// Require returns ErrMissingCookies naming any absent required cookie
func (b *CookieBundle) Require() error {
	if ok, missing := b.CheckRequiredCookies(); !ok {
		return fmt.Errorf("%w: %v\nPlease re-export your Facebook cookies", ErrMissingCookies, missing)
	}
	return nil
}
