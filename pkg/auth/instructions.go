package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExtractionGuide explains how to copy a session cookie from a
// browser that has already passed verification.
func ShowCookieExtractionGuide(site string) {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("SESSION COOKIE GUIDE")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("The http driver reuses a browser session you have opened yourself.")
	fmt.Println()
	fmt.Printf("1. Open %s in your browser and clear any verification page.\n", site)
	fmt.Println("2. Open developer tools (F12, or Cmd+Option+I on macOS).")
	fmt.Println("3. Network tab, reload, click the first document request.")
	fmt.Println("4. Under Request Headers, copy the whole value of 'Cookie:'.")
	fmt.Println("5. Also copy 'User-Agent:'; sessions are often bound to it.")
	fmt.Println()
	fmt.Println("The cookie grants whatever access your browser session has.")
	fmt.Println("It is stored in the system keychain or an encrypted file.")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}

// ShowQuickExtractGuide is the one-line version
func ShowQuickExtractGuide() {
	fmt.Println("\nF12 > Network > reload > any request to the site > Headers > copy the Cookie value")
}
