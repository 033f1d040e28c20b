package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var statusEmoji = map[string]string{
	"completed": ":white_check_mark:",
	"failed":    ":x:",
}

var statusLabel = map[string]string{
	"completed": "Workflow Complete",
	"failed":    "Workflow Failed",
}

func issueRef(number int, title string) string {
	if title == "" {
		return fmt.Sprintf("#%d", number)
	}
	return fmt.Sprintf("#%d %s", number, title)
}

// BuildStartedMessage creates Block Kit blocks for a workflow start
// notification.
func BuildStartedMessage(input WorkflowStartedInput) []goslack.Block {
	text := fmt.Sprintf(":arrows_counterclockwise: *Agent pipeline started* for %s.\n<%s|View Issue>",
		issueRef(input.IssueNumber, input.IssueTitle), input.IssueURL)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildTerminalMessage creates Block Kit blocks for a terminal workflow
// notification.
func BuildTerminalMessage(input WorkflowCompletedInput) []goslack.Block {
	emoji := statusEmoji[input.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[input.Status]
	if label == "" {
		label = "Workflow " + input.Status
	}

	headerText := fmt.Sprintf("%s *%s* — %s", emoji, label,
		issueRef(input.IssueNumber, input.IssueTitle))
	if input.Status != "completed" && input.Error != "" {
		headerText += fmt.Sprintf("\n\n*Error:*\n%s", truncateForSlack(input.Error))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	buttonText := "View Issue"
	if input.Status != "completed" {
		buttonText = "View Details"
	}
	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
	btn.URL = input.IssueURL
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated — see the issue for details)_"
}
