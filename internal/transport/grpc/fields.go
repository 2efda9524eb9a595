package grpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// fields reads typed values out of a Struct request. Absent keys and JSON
// nulls read as unset.
type fields struct {
	s *structpb.Struct
}

func (f fields) value(name string) (*structpb.Value, bool) {
	if f.s == nil {
		return nil, false
	}
	v, ok := f.s.GetFields()[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

// str returns "" for an absent key; the service reports empty required fields.
func (f fields) str(name string) (string, error) {
	v, err := f.optionalStr(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (f fields) optionalStr(name string) (*string, error) {
	v, ok := f.value(name)
	if !ok {
		return nil, nil
	}
	s, isStr := v.GetKind().(*structpb.Value_StringValue)
	if !isStr {
		return nil, fmt.Errorf("%s must be a string", name)
	}
	out := s.StringValue
	return &out, nil
}

// integer accepts a whole JSON number.
func (f fields) integer(name string) (int64, bool, error) {
	v, ok := f.value(name)
	if !ok {
		return 0, false, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, true, fmt.Errorf("%s must be a number", name)
	}
	x := n.NumberValue
	if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
		return 0, true, fmt.Errorf("%s must be an integer", name)
	}
	return int64(x), true, nil
}

func requiredID(req *structpb.Struct) (int64, error) {
	id, ok, err := fields{req}.integer("id")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return id, positive("id", id)
}

func positive(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be a positive integer", name)
	}
	return nil
}
