package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExportGuide writes step-by-step instructions for exporting a
// logged-in Facebook session as a cookie bundle.
func ShowCookieExportGuide(w io.Writer, cookiesPath string) {
	p := func(a ...any) { fmt.Fprintln(w, a...) }

	p(strings.Repeat("=", 80))
	p("📚 FACEBOOK COOKIE EXPORT GUIDE")
	p(strings.Repeat("=", 80))
	p()

	p("fbcleanup drives a browser with your existing Facebook session.")
	p("It never sees your password; it needs the session cookies instead.")
	p()

	p("🌐 STEP 1: Log in to Facebook")
	p("   - Open https://www.facebook.com in Chrome, Edge, Brave or Firefox")
	p("   - Complete any 2FA prompt so the session is fully trusted")
	p("   - Check that https://mbasic.facebook.com loads your profile")
	p()

	p("🍪 STEP 2: Export the cookies")
	p("   METHOD A - Cookie export extension (recommended):")
	p("   1. Install an extension that exports cookies as JSON")
	p("   2. Export all cookies for facebook.com")
	p("   3. Wrap the list as {\"cookies\": [...], \"origins\": []}")
	p()
	p("   METHOD B - Developer tools:")
	p("   1. Press F12 and open the 'Application' (Chrome) or 'Storage' (Firefox) tab")
	p("   2. Expand 'Cookies' and select https://www.facebook.com")
	p("   3. Copy each cookie's name, value, domain and path into the JSON shape above")
	p()

	p("🔑 STEP 3: Make sure these cookies are present:")
	p("   ┌─────────────┬──────────────────────────────────────────────┐")
	p("   │ Cookie Name │ What it looks like                           │")
	p("   ├─────────────┼──────────────────────────────────────────────┤")
	p("   │ c_user      │ Your numeric account id                      │")
	p("   │             │ Example: 100012345678901                     │")
	p("   ├─────────────┼──────────────────────────────────────────────┤")
	p("   │ xs          │ Session secret with %3A separators           │")
	p("   │             │ Example: 12%3AaBcDeFgHiJkLmN%3A2%3A1700000000 │")
	p("   └─────────────┴──────────────────────────────────────────────┘")
	p()

	p("💾 STEP 4: Save or import the export")
	if cookiesPath != "" {
		p(fmt.Sprintf("   - Save it as %s", cookiesPath))
	}
	p("   - Or store it securely: fbcleanup auth import <file> --username <name>")
	p("   - Verify with: fbcleanup auth check")
	p()

	p("⚠️  SECURITY WARNING:")
	p("   • These cookies give FULL access to your Facebook account")
	p("   • NEVER share them with anyone")
	p("   • Logging out of Facebook in the browser invalidates them")
	p()
	p(strings.Repeat("=", 80))
	p()
}

// ShowQuickExportGuide shows a condensed version for experienced users
func ShowQuickExportGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🍪 Quick Guide: export facebook.com cookies as {\"cookies\": [...], \"origins\": []}")
	fmt.Fprintf(w, "   Need: %s\n", strings.Join(RequiredCookies, " and "))
	fmt.Fprintln(w, "   Run 'fbcleanup auth guide' for detailed instructions")
}
