package domain

import (
	"errors"
	"fmt"
)

// Color is an RGBA color with components in the 0.0-1.0 range.
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

type Line struct {
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	EndX   float64 `json:"end_x"`
	EndY   float64 `json:"end_y"`
	Color  Color   `json:"color"`
}

type FigureKind string

const FigureLine FigureKind = "Line"

// Figure is a closed sum of drawing primitives. Exactly one variant field is
// set, matching Kind. Figures are immutable once appended to a room.
type Figure struct {
	Kind FigureKind
	Line *Line
}

func NewLine(line Line) Figure {
	return Figure{Kind: FigureLine, Line: &line}
}

func (f Figure) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FigureLine:
		if f.Line == nil {
			return nil, errors.New("line figure without line")
		}
		return encodeTagged(string(FigureLine), f.Line)
	default:
		return nil, fmt.Errorf("unknown figure kind %q", f.Kind)
	}
}

func (f *Figure) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTagged(data)
	if err != nil {
		return err
	}
	switch FigureKind(tag) {
	case FigureLine:
		var line Line
		if err := decodePayload(tag, payload, &line); err != nil {
			return err
		}
		*f = NewLine(line)
		return nil
	default:
		return fmt.Errorf("unknown figure kind %q", tag)
	}
}
