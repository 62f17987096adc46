package testutil

import (
	"fmt"
	"html"
	"strings"
)

// ReleaseLinkOptions describes one download button on a release page
type ReleaseLinkOptions struct {
	Label string // Button text, e.g. "EPUB FÜR E-READER LADEN"
	Href  string // Link target, relative or absolute
	Class string // Optional CSS class on the anchor
}

// GenerateListingHTML generates the issue listing page with one release date per
// entry, in the order given (the portal shows the newest first).
func GenerateListingHTML(labels []string) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html>
<html lang="de">
<head><meta charset="utf-8"><title>DIE ZEIT E-Paper</title></head>
<body>
<div class="epaper-overview">
`)
	for i, label := range labels {
		fmt.Fprintf(&sb, `	<div class="epaper-cover" data-index="%d">
		<a href="/abo/diezeit/%s"><img src="/cover/%d.jpg" alt="Titelseite"></a>
		<div class="epaper-info">
			<p class="epaper-info-title">DIE ZEIT</p>
			<p class="epaper-info-release-date">%s</p>
		</div>
	</div>
`, i, html.EscapeString(label), i, html.EscapeString(label))
	}
	sb.WriteString(`</div>
</body>
</html>`)

	return sb.String()
}

// GenerateReleasePageHTML generates a release page offering the given download buttons
func GenerateReleasePageHTML(label string, links []ReleaseLinkOptions) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `<!DOCTYPE html>
<html lang="de">
<head><meta charset="utf-8"><title>DIE ZEIT %s</title></head>
<body>
<nav><a href="/abo/diezeit">Alle Ausgaben</a> <a href="https://www.zeit.de/index">ZEIT ONLINE</a></nav>
<div class="epaper-release">
	<h1>Ausgabe vom %s</h1>
	<div class="download-buttons">
`, html.EscapeString(label), html.EscapeString(label))
	for _, link := range links {
		class := link.Class
		if class == "" {
			class = "btn btn-primary"
		}
		fmt.Fprintf(&sb, `		<a class="%s" href="%s">%s</a>
`, html.EscapeString(class), html.EscapeString(link.Href), html.EscapeString(link.Label))
	}
	sb.WriteString(`	</div>
</div>
</body>
</html>`)

	return sb.String()
}

// GenerateLoginPageHTML generates the login form. An empty csrfToken omits the hidden field.
func GenerateLoginPageHTML(csrfToken string) string {
	csrfField := ""
	if csrfToken != "" {
		csrfField = fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`, html.EscapeString(csrfToken))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="de">
<head><meta charset="utf-8"><title>Anmelden</title></head>
<body>
<form method="post" action="/anmelden">
	%s
	<input type="hidden" name="entry_service" value="sonstige">
	<input type="email" name="email">
	<input type="password" name="pass">
	<button type="submit">Anmelden</button>
</form>
</body>
</html>`, csrfField)
}
