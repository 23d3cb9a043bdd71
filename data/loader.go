package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Loader turns one source file into an in-memory batch.
type Loader interface {
	Load(path string) (*Batch, error)
}

// TSVLoader reads tab-separated files. The first line declares the schema,
// one token per column: "name:continuous" or "name:discrete(k)". Every later
// line holds one value per column, "?" for missing. Discrete values are state
// indices in [0, k).
type TSVLoader struct {
	// Encoding selects an optional source charset: "" or "utf8" for none,
	// "gbk", or "latin1".
	Encoding string
}

func (l *TSVLoader) Load(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := l.decode(f)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, fmt.Errorf("%s: empty file", path)
	}
	schema, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	batch := NewBatch(schema)
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		inst, err := parseInstance(schema, text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := batch.Add(inst); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

func (l *TSVLoader) decode(r io.Reader) (io.Reader, error) {
	switch strings.ToLower(l.Encoding) {
	case "", "utf8", "utf-8":
		return r, nil
	case "gbk":
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder()), nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", l.Encoding)
	}
}

func parseHeader(line string) (*Schema, error) {
	fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
	attrs := make([]Attribute, 0, len(fields))
	for _, field := range fields {
		name, kind, ok := strings.Cut(strings.TrimSpace(field), ":")
		if !ok {
			return nil, fmt.Errorf("bad header token %q", field)
		}
		switch {
		case kind == "continuous":
			attrs = append(attrs, Attribute{Name: name, Kind: Continuous})
		case strings.HasPrefix(kind, "discrete(") && strings.HasSuffix(kind, ")"):
			states, err := strconv.Atoi(kind[len("discrete(") : len(kind)-1])
			if err != nil {
				return nil, fmt.Errorf("bad state count in %q", field)
			}
			attrs = append(attrs, Attribute{Name: name, Kind: Discrete, States: states})
		default:
			return nil, fmt.Errorf("bad header token %q", field)
		}
	}
	return NewSchema(attrs)
}

func parseInstance(schema *Schema, line string) (Instance, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != schema.Len() {
		return nil, fmt.Errorf("got %d values, want %d", len(fields), schema.Len())
	}
	inst := make(Instance, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "?" {
			inst[i] = Missing()
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q for %q", field, schema.Attribute(i).Name)
		}
		inst[i] = v
	}
	return inst, nil
}

// ListFiles returns the paths of the directory entries whose names end in
// ext, in lexicographic name order.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
