package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultOutputLimit applies to tools with no entry in DefaultToolCharLimits.
const DefaultOutputLimit = 30000

// DefaultToolCharLimits are per-tool character limits on results fed back
// to the model.
var DefaultToolCharLimits = map[string]int{
	"read_file":  50000,
	"list_dir":   20000,
	"find_file":  20000,
	"grep_files": 20000,
}

// DefaultTruncationModes are per-tool truncation modes.
var DefaultTruncationModes = map[string]TruncationMode{
	"read_file":  TruncateHeadTail,
	"list_dir":   TruncateTail,
	"find_file":  TruncateTail,
	"grep_files": TruncateTail,
}

// DefaultToolLineLimits are applied after character truncation.
var DefaultToolLineLimits = map[string]int{
	"grep_files": 200,
	"find_file":  500,
}

// TruncateOutput applies character-based truncation to output. maxChars
// counts bytes; cuts never split a UTF-8 sequence, so slightly less may be
// kept.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	if mode == TruncateTail {
		tail := output[tailStart(output, len(output)-maxChars):]
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed. "+
			"The full output is available in the event stream.]\n\n", len(output)-len(tail)) +
			tail
	}

	half := maxChars / 2
	head := output[:headEnd(output, half)]
	tail := output[tailStart(output, len(output)-half):]
	return head +
		fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
			"The full output is available in the event stream. "+
			"If you need to see specific parts, re-run the tool with more targeted parameters.]\n\n",
			len(output)-len(head)-len(tail)) +
		tail
}

// headEnd moves a cut at byte i back to the start of the rune it splits.
func headEnd(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// tailStart moves a cut at byte i forward past the rune it splits.
func tailStart(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation and then line truncation
// for toolName. Overrides in charLimits and lineLimits take precedence over
// the defaults; a negative limit disables that stage.
func TruncateToolOutput(output string, toolName string, charLimits map[string]int, lineLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = DefaultOutputLimit
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines, ok := lineLimits[toolName]
	if !ok {
		maxLines = DefaultToolLineLimits[toolName]
	}
	return TruncateLines(result, maxLines)
}
