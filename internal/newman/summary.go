package newman

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"

	"github.com/harrison/monorun/internal/filelock"
)

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`

// WriteSummary writes the markdown summary and its HTML rendering next to
// the suite's reports. With strict set, the markdown ends with a note
// counting records that fell back to placeholders.
func WriteSummary(s Suite, summary *Summary, strict bool) error {
	md := summary.Markdown(s.Name)
	if strict {
		if n := summary.Degraded(); n > 0 {
			md += fmt.Sprintf("\n> %d of %d failure records were incomplete and use placeholder values.\n",
				n, len(summary.Failures))
		}
	}

	if err := filelock.LockAndWrite(s.SummaryMarkdown(), []byte(md)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, htmlHeader, html.EscapeString("Failed Assertions ("+s.Name+")"))
	page.Write(body.Bytes())
	page.WriteString(htmlFooter)

	if err := filelock.LockAndWrite(s.SummaryHTML(), page.Bytes()); err != nil {
		return fmt.Errorf("write summary html: %w", err)
	}
	return nil
}
