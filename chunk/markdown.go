package chunk

import "strings"

// MetadataSection is the metadata key carrying a chunk's markdown section
// header.
const MetadataSection = "section"

type section struct {
	header string
	body   []string
}

// SplitMarkdown splits markdown text into #-header sections first, then
// chunks each section independently. Text before the first header is kept as
// an untitled section. Every chunk emitted from a titled section carries the
// section header in its metadata.
func SplitMarkdown(text string, opts Options) []Chunk {
	sections := splitSections(text)

	var chunks []Chunk
	for _, sec := range sections {
		secOpts := opts
		if sec.header != "" {
			secOpts.Metadata = cloneMetadata(opts.Metadata)
			if secOpts.Metadata == nil {
				secOpts.Metadata = make(map[string]string, 1)
			}
			secOpts.Metadata[MetadataSection] = sec.header
		}
		chunks = append(chunks, Split(strings.Join(sec.body, "\n"), secOpts)...)
	}
	return chunks
}

func splitSections(text string) []section {
	var sections []section
	current := section{}
	for _, line := range strings.Split(text, "\n") {
		if header, ok := headerText(line); ok {
			if len(current.body) > 0 {
				sections = append(sections, current)
			}
			current = section{header: header, body: []string{line}}
			continue
		}
		current.body = append(current.body, line)
	}
	if len(current.body) > 0 {
		sections = append(sections, current)
	}
	return sections
}

// headerText reports whether line is a #-style markdown header and returns
// its title with the marker stripped.
func headerText(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	level := len(line) - len(trimmed)
	if level < 1 || level > 6 {
		return "", false
	}
	if !strings.HasPrefix(trimmed, " ") {
		return "", false
	}
	return strings.TrimSpace(trimmed), true
}
