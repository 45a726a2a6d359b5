package migrate

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jellytools/jfmigrate/internal/pathrw"
)

// Free-text elements that never hold paths; rewriting them would only
// produce unmatched-path warnings.
var xmlSkipTags = map[string]bool{
	"biography": true,
	"outline":   true,
}

// updateJSONFile rewrites every string value of a JSON sidecar in place,
// re-serialized with the server's two-space indentation.
func updateJSONFile(path string, rw pathrw.Rewriter) (pathrw.Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pathrw.Stats{}, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return pathrw.Stats{}, fmt.Errorf("parse %s: %w", path, err)
	}
	node, st := rw.RewriteNode(pathrw.FromValue(v))
	out, err := json.MarshalIndent(node.ToValue(), "", "  ")
	if err != nil {
		return st, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return st, fmt.Errorf("write %s: %w", path, err)
	}
	return st, nil
}

// updateXMLFile rewrites text content of an XML or NFO sidecar in place,
// streaming tokens through so structure, attributes and comments survive
// untouched.
func updateXMLFile(path string, rw pathrw.Rewriter) (pathrw.Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pathrw.Stats{}, err
	}

	var total pathrw.Stats
	var buf bytes.Buffer
	dec := xml.NewDecoder(bytes.NewReader(raw))
	enc := xml.NewEncoder(&buf)

	var stack []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("parse %s: %w", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			current := ""
			if len(stack) > 0 {
				current = stack[len(stack)-1]
			}
			if !xmlSkipTags[current] {
				if text := strings.TrimSpace(string(t)); text != "" {
					out, st := rw.RewriteString(text)
					total.Add(st)
					if out != text {
						tok = xml.CharData(strings.Replace(string(t), text, out, 1))
					}
				}
			}
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return total, fmt.Errorf("rewrite %s: %w", path, err)
		}
	}
	if err := enc.Flush(); err != nil {
		return total, fmt.Errorf("rewrite %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return total, fmt.Errorf("write %s: %w", path, err)
	}
	return total, nil
}

// updateMblinkFile rewrites a link file, which holds a single path and
// nothing else.
func updateMblinkFile(path string, rw pathrw.Rewriter) (pathrw.Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pathrw.Stats{}, err
	}
	out, st := rw.RewriteString(string(raw))
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return st, fmt.Errorf("write %s: %w", path, err)
	}
	return st, nil
}
