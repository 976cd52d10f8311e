// Package factsheet loads card sources from YAML files.
package factsheet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid factsheet")

// Factsheet is a table of facts plus the columns shown on each card side.
type Factsheet struct {
	Title   string     `yaml:"title" validate:"required"`
	Columns []string   `yaml:"columns" validate:"required,min=1,dive,required"`
	Front   []string   `yaml:"front" validate:"required,min=1,dive,required"`
	Back    []string   `yaml:"back" validate:"dive,required"`
	Rows    [][]string `yaml:"rows"`
}

// Row is one fact keyed by its first cell.
type Row struct {
	Key    string
	Fields map[string]string
}

// Load reads and validates a factsheet from path.
func Load(path string) (*Factsheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a factsheet.
func Parse(data []byte) (*Factsheet, error) {
	var fs Factsheet
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to decode factsheet: %w", err)
	}
	fs.Title = strings.TrimSpace(fs.Title)
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return &fs, nil
}

// Validate checks structure, title, column references and rows.
func (fs *Factsheet) Validate() error {
	if err := validator.New().Struct(fs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := ValidateTitle(fs.Title); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(fs.Columns))
	for _, col := range fs.Columns {
		if _, dup := known[col]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalid, col)
		}
		known[col] = struct{}{}
	}
	for _, col := range append(append([]string(nil), fs.Front...), fs.Back...) {
		if _, ok := known[col]; !ok {
			return fmt.Errorf("%w: mapping names non-existent column %q", ErrInvalid, col)
		}
	}
	_, err := fs.Parsed()
	return err
}

// Parsed returns the rows keyed by first cell, in file order.
func (fs *Factsheet) Parsed() ([]Row, error) {
	rows := make([]Row, 0, len(fs.Rows))
	seen := make(map[string]int, len(fs.Rows))
	for i, cells := range fs.Rows {
		if len(cells) != len(fs.Columns) {
			return nil, fmt.Errorf("%w: row %d (%s) has wrong length", ErrInvalid, i+1, strings.Join(cells, ","))
		}
		key := strings.TrimSpace(cells[0])
		if key == "" {
			return nil, fmt.Errorf("%w: row %d has an empty first cell", ErrInvalid, i+1)
		}
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: row %d has same first word as row %d (%s)", ErrInvalid, i+1, prev, key)
		}
		seen[key] = i + 1
		fields := make(map[string]string, len(cells))
		for j, col := range fs.Columns {
			fields[col] = cells[j]
		}
		rows = append(rows, Row{Key: key, Fields: fields})
	}
	return rows, nil
}

// BackColumns returns the back columns that are not already on the front.
func (fs *Factsheet) BackColumns() []string {
	front := make(map[string]struct{}, len(fs.Front))
	for _, col := range fs.Front {
		front[col] = struct{}{}
	}
	out := make([]string, 0, len(fs.Back))
	for _, col := range fs.Back {
		if _, ok := front[col]; ok {
			continue
		}
		out = append(out, col)
	}
	return out
}
