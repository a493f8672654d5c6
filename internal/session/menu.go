package session

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

const (
	defaultMenuRowLength = 80
	defaultMenuRowCount  = 5
)

type selectable interface {
	Selector() string
}

// menu is a numbered list of options laid out in columns, filled top to
// bottom then left to right.
type menu[T selectable] struct {
	options []T
	output  []string
}

func newMenu[T selectable](options []T) *menu[T] {
	m := &menu[T]{options: options}
	m.build()
	return m
}

func (m *menu[T]) build() {
	// Plus 7 for number and spacing (nn. <val>  )
	colWidth := 1
	for _, v := range m.options {
		if l := len(v.Selector()) + 7; l > colWidth {
			colWidth = l
		}
	}

	numCols := max(defaultMenuRowLength/colWidth, 1)
	numRows := max((len(m.options)+numCols-1)/numCols, defaultMenuRowCount)

	rows := make([]string, numRows)
	for i, v := range m.options {
		rows[i%numRows] += fmt.Sprintf("%2d. %-*s  ", i+1, colWidth-5, v.Selector())
	}
	m.output = rows
}

// Select returns the option numbered i, counting from one.
func (m *menu[T]) Select(i int) (T, bool) {
	if i < 1 || i > len(m.options) {
		var zero T
		return zero, false
	}
	return m.options[i-1], true
}

func (m *menu[T]) Prompt(ctx context.Context, lr *lineReader, w io.Writer, title string) (T, error) {
	var zero T

	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return zero, err
	}
	for _, row := range m.output {
		if len(row) > 0 {
			if _, err := fmt.Fprintf(w, "%s\n", row); err != nil {
				return zero, err
			}
		}
	}

	selection, err := prompt(ctx, lr, w, "Make your selection: ", withValidator(
		func(str string) (bool, string) {
			i, err := strconv.Atoi(str)
			if err != nil {
				return false, "Invalid selection!\n"
			}
			if _, ok := m.Select(i); !ok {
				return false, "Invalid selection!\n"
			}
			return true, ""
		},
	))
	if err != nil {
		return zero, err
	}

	i, _ := strconv.Atoi(selection)
	v, _ := m.Select(i)
	return v, nil
}
