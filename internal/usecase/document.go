package usecase

import (
	"fmt"
	"strings"

	"NichePress/internal/domain"
)

// disclosureBlock is the required affiliate disclosure; it is prepended to
// every published document right after the title.
const disclosureBlock = "> **Disclosure:** This article contains affiliate links. " +
	"We may earn a commission when you buy through links on our site, at no " +
	"extra cost to you."

// assembleDocument concatenates the enriched sections in outline order into
// the final Markdown document: title, disclosure, sections with their
// annotations, then the FAQ block.
func assembleDocument(enriched domain.Enriched) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", domain.TitleFromSlug(enriched.NicheSlug))
	b.WriteString(disclosureBlock + "\n\n")

	for _, item := range enriched.Items {
		fmt.Fprintf(&b, "## %s\n\n", item.Heading)
		b.WriteString(strings.TrimSpace(item.Body) + "\n\n")

		if item.Image != nil {
			fmt.Fprintf(&b, "![%s](%s)\n\n", item.Heading, item.Image.URL)
			if item.Image.Credit != "" {
				fmt.Fprintf(&b, "*%s*\n\n", item.Image.Credit)
			}
		}

		for _, stat := range item.Stats {
			fmt.Fprintf(&b, "- %s\n", stat)
		}
		if len(item.Stats) > 0 {
			b.WriteString("\n")
		}

		if len(item.Citations) > 0 {
			b.WriteString("Sources: ")
			parts := make([]string, 0, len(item.Citations))
			for _, cit := range item.Citations {
				if cit.Title != "" {
					parts = append(parts, fmt.Sprintf("[%s](%s)", cit.Title, cit.URL))
				} else {
					parts = append(parts, fmt.Sprintf("<%s>", cit.URL))
				}
			}
			b.WriteString(strings.Join(parts, ", ") + "\n\n")
		}
	}

	if len(enriched.Outline.FAQs) > 0 {
		b.WriteString("## Frequently Asked Questions\n\n")
		for _, q := range enriched.Outline.FAQs {
			fmt.Fprintf(&b, "**%s**\n\n[Answer pending]\n\n", q)
		}
	}

	return strings.TrimSpace(b.String()) + "\n"
}
