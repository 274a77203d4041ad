// Package browser defines the page capability used to drive the basic
// mobile site, with a chromedp implementation and an in-memory fake.
package browser
