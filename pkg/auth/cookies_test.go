package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "fbcleanup/pkg/errors"
)

const validExport = `{
  "cookies": [
    {"name": "c_user", "value": "100012345678901", "domain": ".facebook.com", "path": "/", "expires": 1735689600, "httpOnly": false, "secure": true, "sameSite": "None"},
    {"name": "xs", "value": "12%3AaBcDeFgHiJkLmN%3A2%3A1700000000", "domain": ".facebook.com", "path": "/", "httpOnly": true, "secure": true}
  ],
  "origins": []
}`

func TestLoadCookieBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facebook_cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(validExport), 0600))

	b, err := LoadCookieBundle(path)
	require.NoError(t, err)
	assert.Len(t, b.Cookies, 2)
	assert.Equal(t, "100012345678901", b.UserID())
	assert.NotNil(t, b.Origins)

	ok, missing := b.CheckRequiredCookies()
	assert.True(t, ok)
	assert.Empty(t, missing)
	assert.NoError(t, b.Require())

	bc := b.BrowserCookies()
	require.Len(t, bc, 2)
	assert.Equal(t, "c_user", bc[0].Name)
	assert.Equal(t, ".facebook.com", bc[0].Domain)
	assert.Equal(t, float64(1735689600), bc[0].Expires)
	assert.Equal(t, "None", bc[0].SameSite)
	assert.True(t, bc[1].HTTPOnly)
}

func TestLoadCookieBundleMissingFile(t *testing.T) {
	_, err := LoadCookieBundle(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCookieFileNotFound))
	assert.Contains(t, err.Error(), "Please export your Facebook cookies")
}

func TestParseCookieBundleInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not json", `{cookies`, "Expected format"},
		{"no cookies key", `{"origins": []}`, `missing "cookies"`},
		{"cookies not list", `{"cookies": {"name": "x"}}`, "not a list"},
		{"missing value", `{"cookies": [{"name": "c_user", "domain": ".facebook.com", "path": "/"}]}`, `missing field "value"`},
		{"numeric name", `{"cookies": [{"name": 5, "value": "1", "domain": "d", "path": "/"}]}`, `field "name" is not a string`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCookieBundle([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCookieFormat)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckRequiredCookies(t *testing.T) {
	b := &CookieBundle{Cookies: []Cookie{{Name: "xs", Value: "v", Domain: ".facebook.com", Path: "/"}}}

	ok, missing := b.CheckRequiredCookies()
	assert.False(t, ok)
	assert.Equal(t, []string{"c_user"}, missing)

	err := b.Require()
	assert.ErrorIs(t, err, ErrMissingCookies)
	assert.ErrorIs(t, err, errs.ErrCookiesMissing)
	assert.True(t, strings.Contains(err.Error(), "c_user"))

	var nilBundle *CookieBundle
	ok, missing = nilBundle.CheckRequiredCookies()
	assert.False(t, ok)
	assert.Equal(t, RequiredCookies, missing)

	_, found := b.Value("c_user")
	assert.False(t, found)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, testBundle("1").ValidateFormat())
	assert.ErrorIs(t, (&CookieBundle{}).ValidateFormat(), ErrInvalidCookieFormat)
	assert.ErrorIs(t, (&CookieBundle{Cookies: []Cookie{{Name: "x"}}}).ValidateFormat(), ErrInvalidCookieFormat)
}
