// Package templates holds the HTML fragments rendered by the web server.
package templates

//go:generate templ generate
