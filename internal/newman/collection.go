// Package newman prepares API test collections, runs them through newman and
// turns the JSON report into a failure summary.
package newman

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/harrison/monorun/internal/filelock"
)

// AuthTokenKey is the collection variable that carries the bearer token.
const AuthTokenKey = "authToken"

// CollectionParseError reports a collection document that cannot be mutated.
// The suite must not run against it.
type CollectionParseError struct {
	Path   string // Empty when parsing an in-memory document
	Reason string
}

func (e *CollectionParseError) Error() string {
	if e.Path == "" {
		return "invalid collection: " + e.Reason
	}
	return fmt.Sprintf("invalid collection %s: %s", e.Path, e.Reason)
}

type variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// InjectVariable upserts key in the top-level "variable" array of doc.
//
// The first record whose key matches has its value replaced in place. If
// none matches, {key, value, type:"string"} is appended. A missing or
// non-array "variable" field is replaced by a one-record array. All other
// bytes of doc, including field order, are left as they were.
func InjectVariable(doc []byte, key, value string) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, &CollectionParseError{Reason: "not valid JSON"}
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, &CollectionParseError{Reason: "root is not a JSON object"}
	}

	record, err := json.Marshal(variable{Key: key, Value: value, Type: "string"})
	if err != nil {
		return nil, fmt.Errorf("encode variable: %w", err)
	}

	vars := root.Get("variable")
	if !vars.IsArray() {
		return sjson.SetRawBytes(doc, "variable", append(append([]byte{'['}, record...), ']'))
	}

	index := -1
	vars.ForEach(func(i, v gjson.Result) bool {
		k := v.Get("key")
		if k.Type == gjson.String && k.Str == key {
			index = int(i.Int())
			return false
		}
		return true
	})

	if index >= 0 {
		return sjson.SetBytes(doc, "variable."+strconv.Itoa(index)+".value", value)
	}
	return sjson.SetRawBytes(doc, "variable.-1", record)
}

// InjectFile applies InjectVariable to the collection at path under its
// file lock and writes the result back pretty-printed.
func InjectFile(path, key, value string) error {
	return filelock.LockAndUpdate(path, func(doc []byte) ([]byte, error) {
		updated, err := InjectVariable(doc, key, value)
		if err != nil {
			var cpe *CollectionParseError
			if errors.As(err, &cpe) {
				cpe.Path = path
			}
			return nil, err
		}
		return pretty.Pretty(updated), nil
	})
}
