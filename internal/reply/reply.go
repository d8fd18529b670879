// Package reply renders resolver results as Slack message text.
package reply

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/qabot/internal/resolver"
)

// ApologyText is sent whenever resolution or the handler itself fails.
const ApologyText = "Sorry, I encountered an error while processing your request."

// Formatter holds the links and contact shown alongside replies. Every reply
// points somewhere: with nothing configured the generic fallbacks are used.
type Formatter struct {
	Contact       string // who to reach for corrections, e.g. "@helpdesk"
	ProjectURL    string // where to read more or file issues
	KnowledgeURL  string // public location of the knowledge base file
	KnowledgeFile string // knowledge base file name, used when KnowledgeURL is empty
}

const (
	fallbackContact = " Ask the bot maintainers in this channel for more info or to suggest corrections."
	fallbackSource  = "the bot's knowledge base file"
)

// Format maps a result to user-visible text. Error causes are never included.
func (f Formatter) Format(res resolver.Result) string {
	switch res.Outcome {
	case resolver.OutcomeAnswered:
		return f.answered(res.Answer)
	case resolver.OutcomeNotFound:
		return f.notFound()
	default:
		return ApologyText
	}
}

func (f Formatter) answered(answer string) string {
	var b strings.Builder
	b.WriteString(codeBlock(answer))
	b.WriteString("\nThis answer may come from an AI model and can be incorrect or misleading.")
	switch {
	case f.Contact != "":
		fmt.Fprintf(&b, " Contact %s for more info or to suggest corrections.", f.Contact)
	case f.ProjectURL != "":
		b.WriteString(" Corrections and issues can be raised at the link below.")
	default:
		b.WriteString(fallbackContact)
	}
	if f.ProjectURL != "" {
		fmt.Fprintf(&b, "\n\nFor more info check %s", f.ProjectURL)
	}
	return b.String()
}

func (f Formatter) notFound() string {
	var b strings.Builder
	b.WriteString(codeBlock("No relevant answer found..."))
	fmt.Fprintf(&b, " The knowledge base is limited to %s, maybe try asking something from there?", f.source())
	b.WriteString(" You can also rephrase your question.")
	return b.String()
}

func (f Formatter) source() string {
	switch {
	case f.KnowledgeURL != "":
		return f.KnowledgeURL
	case f.KnowledgeFile != "":
		return "the knowledge base file `" + f.KnowledgeFile + "`"
	default:
		return fallbackSource
	}
}

// codeBlock wraps text in a Slack code block. Backtick fences inside the
// answer would end the block early, so they are softened.
func codeBlock(text string) string {
	return "```" + strings.ReplaceAll(text, "```", "'''") + "```"
}
