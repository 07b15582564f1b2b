package command

import (
	_ "embed"
	"fmt"
	"reflect"

	"github.com/hjson/hjson-go"
	"github.com/pascaldekloe/name"
)

//go:embed table.hjson
var tableSource []byte

// staticEntry is an exact-match command: the reply_text is used verbatim
// unless the interpreter special-cases the id for runtime-generated
// content (uptime, meminfo, signal report, ...).
type staticEntry struct {
	Cmd       string `json:"cmd"`
	ID        int    `json:"id"`
	Help      string `json:"help"`
	ReplyText string `json:"reply_text"`
}

// prefixEntry is an argument-taking command matched by prefix.
type prefixEntry struct {
	Prefix string `json:"prefix"`
	ID     int    `json:"id"`
	Help   string `json:"help"`
}

type table struct {
	Static             []staticEntry `json:"static"`
	Prefix             []prefixEntry `json:"prefix"`
	RepeatedCmdReplies []string      `json:"repeated_cmd_replies"`
}

// loadTable decodes the embedded Hjson command table. Hjson is used
// instead of JSON so the table stays hand-editable (comments, unquoted
// keys) the way the rest of the pack's code generators consume their
// Hjson-described schemas.
func loadTable(src []byte) (table, error) {
	var t table
	if err := hjson.Unmarshal(src, &t); err != nil {
		return table{}, fmt.Errorf("command: decode table: %w", err)
	}
	if len(t.Static) == 0 {
		return table{}, fmt.Errorf("command: table has no static commands")
	}
	return t, nil
}

// mismatchedFieldTags reports any exported field of v whose `json` tag
// doesn't match the field name's snake_case form, so a struct rename that
// forgets to update its tag (and so silently drifts from the Hjson table's
// keys) shows up as a concrete diff instead of a quiet decode failure.
func mismatchedFieldTags(v any) []string {
	var bad []string
	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		want := fieldKey(f.Name)
		if got := f.Tag.Get("json"); got != want {
			bad = append(bad, fmt.Sprintf("%s.%s: tag %q, want %q", t.Name(), f.Name, got, want))
		}
	}
	return bad
}

// fieldKey normalizes a Go-style identifier to the snake_case key used in
// the Hjson source, via the same casing helper the generator pack uses.
func fieldKey(goName string) string {
	return name.SnakeCase(goName)
}
