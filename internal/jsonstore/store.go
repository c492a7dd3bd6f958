// Package jsonstore reads and updates JSON descriptor files addressed by key
// paths such as ["credentials", "github.com", "api"].
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrReadFailed   = errs.Kind(errs.ErrIO, "jsonstore: read failed")
	ErrWriteFailed  = errs.Kind(errs.ErrIO, "jsonstore: write failed")
	ErrNotAnObject  = errs.Kind(errs.ErrIO, "jsonstore: not a JSON object")
	ErrEmptyKeyPath = errs.Kind(errs.ErrValidation, "jsonstore: empty key path")
)

type Store struct {
	path string
}

func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the document, or an empty object when the file is missing.
func (s *Store) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, errs.WrapMsgErr(ErrReadFailed, s.path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, errs.WrapMsgErr(ErrNotAnObject, s.path, err)
	}
	return doc, nil
}

func (s *Store) Has(keyPath []string) (bool, error) {
	_, ok, err := s.Get(keyPath)
	return ok, err
}

func (s *Store) Get(keyPath []string) (any, bool, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	var cur any = doc
	for _, key := range keyPath {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if cur, ok = obj[key]; !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// Set stores value at keyPath, creating intermediate objects, and rewrites
// the file.
func (s *Store) Set(keyPath []string, value any) error {
	if len(keyPath) == 0 {
		return ErrEmptyKeyPath
	}
	doc, err := s.Load()
	if err != nil {
		return err
	}
	obj := doc
	for i, key := range keyPath[:len(keyPath)-1] {
		next, ok := obj[key].(map[string]any)
		if !ok {
			if _, exists := obj[key]; exists {
				return errs.WrapMsg(ErrNotAnObject, fmt.Sprintf("%s: key %q", s.path, strings.Join(keyPath[:i+1], ".")))
			}
			next = map[string]any{}
			obj[key] = next
		}
		obj = next
	}
	obj[keyPath[len(keyPath)-1]] = value
	return s.Save(doc)
}

func (s *Store) Save(doc map[string]any) error {
	data, err := Marshal(doc)
	if err != nil {
		return errs.WrapMsgErr(ErrWriteFailed, s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errs.WrapMsgErr(ErrWriteFailed, s.path, err)
	}
	return nil
}

// Decode parses a JSON object, keeping numbers exact.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", v)
	}
	return obj, nil
}

// Marshal renders v with four-space indentation, sorted keys and a trailing
// newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
