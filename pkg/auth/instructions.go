package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying the
// session cookies out of a logged-in browser
func ShowCookieExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"TWITTER COOKIE EXTRACTION GUIDE",
		rule,
		"",
		"The pipeline authenticates with the cookies of a logged-in browser session.",
		"",
		"1. Log in at https://twitter.com in your browser.",
		"2. Open Developer Tools (F12, or Cmd+Option+I on macOS).",
		"3. Chrome/Edge: Application > Cookies > https://twitter.com",
		"   Firefox:     Storage > Cookies > https://twitter.com",
		"4. Copy these values:",
		"     auth_token   40 hex characters",
		"     ct0          the CSRF token, sent back as x-csrf-token",
		"",
		"Copy only the value, without quotes or semicolons. The cookies expire when",
		"you log out of the browser session; run 'twpipeline auth login' again then.",
		"",
		"These cookies grant full access to the account. Never share them.",
		rule,
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// ShowQuickExtractGuide writes a one-line reminder
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Application/Storage > Cookies > twitter.com: need auth_token and ct0 (type 'help' for details)")
}
