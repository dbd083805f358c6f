package validate

import (
	"fmt"
	"reflect"
)

//Kind classifies a runtime value for argument type rules
type Kind int

const (
	//Invalid value of an unclassifiable or nil argument
	Invalid Kind = iota
	//List any slice or array value
	List
	//Mapping any map value
	Mapping
	//String a string value
	String
	//Int any integer value regardless of width or sign
	Int
	//Float a float32 or float64 value
	Float
	//Bool a bool value
	Bool
)

func (k Kind) String() string {
	switch k {
	case List:
		return "list"
	case Mapping:
		return "mapping"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	}
	return "invalid"
}

//KindOf classify a value. Typed slices and maps count as List and Mapping.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return Invalid
	case []interface{}:
		return List
	case map[string]interface{}:
		return Mapping
	case string:
		return String
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int
	case float32, float64:
		return Float
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return List
	case reflect.Map:
		return Mapping
	}
	return Invalid
}

//Argument declares validation rules for one argument of a wrapped function.
//Arguments are plain values built once through Arg and its chain methods and
//shared read-only afterwards, each chain call returns a modified copy.
type Argument struct {
	name     string
	index    int
	kinds    []Kind
	values   []interface{}
	required bool
}

//Arg declare rules for an argument located by keyword name
func Arg(name string) Argument {
	return Argument{name: name, index: -1}
}

//At also bind the argument to a positional slot
func (a Argument) At(index int) Argument {
	a.index = index
	return a
}

//OfKind restrict the argument value to the given kinds
func (a Argument) OfKind(kinds ...Kind) Argument {
	a.kinds = append([]Kind(nil), kinds...)
	return a
}

//In restrict the argument value to a fixed set of scalar values
func (a Argument) In(values ...interface{}) Argument {
	a.values = append([]interface{}(nil), values...)
	return a
}

//Required mark the argument as mandatory
func (a Argument) Required() Argument {
	a.required = true
	return a
}

func (a Argument) label() string {
	if a.name != "" {
		return a.name
	}
	return fmt.Sprintf("arg%d", a.index)
}
