package rt

import (
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset element helpers over the toolkit API. Sequences show up either as
// []*dicom.SequenceItemValue or as [][]*dicom.Element depending on how the
// dataset was built, so both shapes are handled everywhere.

func findString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	return elementString(e)
}

func findStrings(ds *dicom.Dataset, t tag.Tag) ([]string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	v, ok := e.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	out := make([]string, len(v))
	for i, s := range v {
		out[i] = strings.TrimSpace(s)
	}
	return out, true
}

func findInt(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	return elementInt(e)
}

func findSequence(ds *dicom.Dataset, t tag.Tag) [][]*dicom.Element {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	return sequenceItems(e)
}

func itemElement(item []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, e := range item {
		if e.Tag == t {
			return e
		}
	}
	return nil
}

func itemString(item []*dicom.Element, t tag.Tag) (string, bool) {
	e := itemElement(item, t)
	if e == nil {
		return "", false
	}
	return elementString(e)
}

func itemInt(item []*dicom.Element, t tag.Tag) (int, bool) {
	e := itemElement(item, t)
	if e == nil {
		return 0, false
	}
	return elementInt(e)
}

func itemSequence(item []*dicom.Element, t tag.Tag) [][]*dicom.Element {
	e := itemElement(item, t)
	if e == nil {
		return nil
	}
	return sequenceItems(e)
}

func elementString(e *dicom.Element) (string, bool) {
	switch v := e.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return strings.TrimSpace(v[0]), true
	case []int:
		if len(v) == 0 {
			return "", false
		}
		return strconv.Itoa(v[0]), true
	default:
		return "", false
	}
}

func elementInt(e *dicom.Element) (int, bool) {
	switch v := e.Value.GetValue().(type) {
	case []int:
		if len(v) == 0 {
			return 0, false
		}
		return v[0], true
	case []string:
		if len(v) == 0 {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(v[0]))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func sequenceItems(e *dicom.Element) [][]*dicom.Element {
	switch v := e.Value.GetValue().(type) {
	case []*dicom.SequenceItemValue:
		items := make([][]*dicom.Element, 0, len(v))
		for _, item := range v {
			if elems, ok := item.GetValue().([]*dicom.Element); ok {
				items = append(items, elems)
			}
		}
		return items
	case [][]*dicom.Element:
		return v
	default:
		return nil
	}
}
