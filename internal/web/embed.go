// ABOUTME: Embeds HTML templates and help docs into the binary using go:embed
// ABOUTME: Provides templateFS and helpDocsFS for loading at runtime

package web

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed docs/help/*.md
var helpDocsFS embed.FS
