// Package prompt builds the conversation sent to the model and parses
// the structured parts of its replies.
//
// Estimation runs in two phases: a discovery round that asks the model
// to list every file the script touches, then an estimation round fed
// with the size report of each discovered file. Without a tool server
// the single-shot form folds everything into one round.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/JianYang-Lab/SlurmSlim/internal/jobscript"
	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
)

const systemText = `You are a specialized assistant for estimating the peak memory usage of batch job scripts. Analyze script content and characteristics to predict how much RAM a job needs.

When analyzing, consider:
- Data structures and their growth patterns
- Memory-intensive operations (large matrix operations, data loading)
- Loops that accumulate data and recursion depth
- Language-specific overhead (a Python interpreter costs ~15-30MB before any work starts)

Report estimates in appropriate units (KB/MB/GB). Remember that dynamic memory usage often exceeds static file size by orders of magnitude, especially for data processing scripts.`

// FileSize pairs a path with the size report the tool server returned
// for it.
type FileSize struct {
	Path   string
	Report string
}

// Conversation accumulates the message history across the estimation
// phases.
type Conversation struct {
	desc jobscript.Descriptor
	msgs []llm.Message
}

// NewConversation starts a conversation about the described job.
func NewConversation(d jobscript.Descriptor) *Conversation {
	return &Conversation{
		desc: d,
		msgs: []llm.Message{{Role: "system", Content: systemText}},
	}
}

// Messages returns the history built so far.
func (c *Conversation) Messages() []llm.Message {
	return c.msgs
}

// AskDiscovery appends the file-discovery request and returns the
// messages to send. scriptFence is the fenced script content from the
// tool server.
func (c *Conversation) AskDiscovery(scriptFence string) []llm.Message {
	var b strings.Builder
	b.WriteString(hostFacts(c.desc))
	b.WriteString("\n\nIdentify every file this script reads, loads, or executes at runtime: data files, models, reference inputs, and other scripts. Note any memory-intensive operations you see along the way.\n\nHere are the contents of the script:\n\n")
	b.WriteString(scriptFence)
	b.WriteString("\n\nCollect the file paths into a list, for example [\"data/train.csv\", \"lib/util.py\"]. Only give me the list of paths. Do not include any other information.")

	c.msgs = append(c.msgs, llm.Message{Role: "user", Content: b.String()})
	return c.msgs
}

// RecordReply appends the model's answer to the history.
func (c *Conversation) RecordReply(text string) {
	c.msgs = append(c.msgs, llm.Message{Role: "assistant", Content: text})
}

// AskEstimate appends the final estimation request and returns the
// messages to send.
func (c *Conversation) AskEstimate(sizes []FileSize) []llm.Message {
	var b strings.Builder
	b.WriteString("Here are the file sizes of the files used in the script:\n\n")
	if len(sizes) == 0 {
		b.WriteString("(no additional files were identified)\n")
	}
	for _, fs := range sizes {
		fmt.Fprintf(&b, "%s: %s\n", fs.Path, fs.Report)
	}
	b.WriteString(`
Estimate the peak memory usage during script execution:
1. Start with baseline requirements: runtime overhead, static code size, and the typical footprint of imported libraries.
2. Analyze dynamic memory patterns: data structures at their peak, matrix operations (rows x columns x element size), temporaries and intermediate results.
3. Report the minimum requirement, the expected peak, and the worst case, with a breakdown by major component and your confidence level.

Infer the memory usage from these file infos and give me your most confident estimation.`)

	c.msgs = append(c.msgs, llm.Message{Role: "user", Content: b.String()})
	return c.msgs
}

// SingleShot builds the one-round conversation used when no tool
// server is available.
func SingleShot(d jobscript.Descriptor, scriptFence string) []llm.Message {
	var b strings.Builder
	b.WriteString(hostFacts(d))
	b.WriteString("\n\nHere are the contents of the script:\n\n")
	b.WriteString(scriptFence)
	b.WriteString("\n\nEstimate the peak memory usage during script execution. Report the minimum requirement, the expected peak, and the worst case, then give me your most confident estimation as a single figure with a unit.")

	return []llm.Message{
		{Role: "system", Content: systemText},
		{Role: "user", Content: b.String()},
	}
}

func hostFacts(d jobscript.Descriptor) string {
	mem := "unknown"
	if d.HostMemoryBytes > 0 {
		mem = humanize.IBytes(d.HostMemoryBytes)
	}
	return fmt.Sprintf("Job script: %s (%s on disk). Host: %d CPUs, %s total RAM.",
		d.Path, humanize.IBytes(d.SizeBytes), d.HostCPUs, mem)
}

var listItemRe = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)

// ParseFileList extracts the file list from a discovery reply. It
// accepts Python- and JSON-style lists with either quote style, and
// falls back to bare comma- or newline-separated items inside the
// brackets. Duplicates collapse, order is preserved.
func ParseFileList(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no file list in reply")
	}
	region := reply[start+1 : end]

	var out []string
	seen := make(map[string]bool)
	add := func(item string) {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			return
		}
		seen[item] = true
		out = append(out, item)
	}

	for _, m := range listItemRe.FindAllStringSubmatch(region, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	if len(out) == 0 {
		for _, item := range strings.FieldsFunc(region, func(r rune) bool {
			return r == ',' || r == '\n'
		}) {
			add(strings.Trim(strings.TrimSpace(item), "`"))
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no file list in reply")
	}
	return out, nil
}

// EstimateTokens approximates how many tokens s costs, using the usual
// four-characters-per-token rule of thumb.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// TruncateToTokens clips s so it costs roughly maxTokens, marking the
// cut. Strings already under the limit come back unchanged.
func TruncateToTokens(s string, maxTokens int) string {
	if EstimateTokens(s) <= maxTokens {
		return s
	}
	cut := maxTokens * 4
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
